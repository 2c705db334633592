package crypto

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

type claimVector struct {
	Terms struct {
		Lender               string `json:"lender"`
		CollateralCollection string `json:"collateral_collection"`
		CollateralItemID     string `json:"collateral_item_id"`
		OfferExpiration      uint64 `json:"offer_expiration"`
		LendToken            string `json:"lend_token"`
		LendAmount           string `json:"lend_amount"`
		LoanDuration         uint64 `json:"loan_duration"`
		RepayToken           string `json:"repay_token"`
		RepayAmount          string `json:"repay_amount"`
	} `json:"terms"`
	ClaimHash string `json:"claim_hash"`
}

func TestClaimHashVectors(t *testing.T) {
	raw := readFile(t, filepath.Join("..", "..", "..", "testvectors", "v0", "claims.json"))
	var vectors []claimVector
	if err := json.Unmarshal(raw, &vectors); err != nil {
		t.Fatalf("unmarshal claims.json: %v", err)
	}
	if len(vectors) == 0 {
		t.Fatal("no claim vectors found")
	}
	for i, vec := range vectors {
		terms := domain.ClaimTerms{
			Lender:               common.HexToAddress(vec.Terms.Lender),
			CollateralCollection: common.HexToAddress(vec.Terms.CollateralCollection),
			CollateralItemID:     mustBig(t, vec.Terms.CollateralItemID),
			OfferExpiration:      vec.Terms.OfferExpiration,
			LendToken:            common.HexToAddress(vec.Terms.LendToken),
			LendAmount:           mustBig(t, vec.Terms.LendAmount),
			LoanDuration:         vec.Terms.LoanDuration,
			RepayToken:           common.HexToAddress(vec.Terms.RepayToken),
			RepayAmount:          mustBig(t, vec.Terms.RepayAmount),
		}
		got, err := ClaimHash(terms)
		if err != nil {
			t.Fatalf("vector %d: claim hash: %v", i, err)
		}
		if got != common.HexToHash(vec.ClaimHash) {
			t.Fatalf("vector %d: claim hash mismatch: got %s want %s", i, got.Hex(), vec.ClaimHash)
		}
	}
}

func TestPackClaimLayout(t *testing.T) {
	terms := sampleTerms()
	packed, err := PackClaim(terms)
	if err != nil {
		t.Fatalf("pack claim: %v", err)
	}
	if len(packed) != packedClaimLen {
		t.Fatalf("expected %d bytes, got %d", packedClaimLen, len(packed))
	}
	tagLen := len(domain.ClaimDomainTag)
	if string(packed[:tagLen]) != domain.ClaimDomainTag {
		t.Fatal("packed claim does not start with the domain tag")
	}
	if common.BytesToAddress(packed[tagLen:tagLen+20]) != terms.Lender {
		t.Fatal("lender not packed right after the tag")
	}
	itemWord := packed[tagLen+40 : tagLen+72]
	if new(big.Int).SetBytes(itemWord).Cmp(terms.CollateralItemID) != 0 {
		t.Fatal("collateral item id not packed as a 32-byte word")
	}
}

func TestClaimHashIsDeterministic(t *testing.T) {
	terms := sampleTerms()
	first, err := ClaimHash(terms)
	if err != nil {
		t.Fatalf("claim hash: %v", err)
	}
	second, err := ClaimHash(terms)
	if err != nil {
		t.Fatalf("claim hash: %v", err)
	}
	if first != second {
		t.Fatal("identical terms produced different hashes")
	}
}

func TestClaimHashChangesWithEveryField(t *testing.T) {
	base := sampleTerms()
	baseHash, err := ClaimHash(base)
	if err != nil {
		t.Fatalf("claim hash: %v", err)
	}
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	mutations := map[string]func(*domain.ClaimTerms){
		"lender":                func(c *domain.ClaimTerms) { c.Lender = other },
		"collateral_collection": func(c *domain.ClaimTerms) { c.CollateralCollection = other },
		"collateral_item_id":    func(c *domain.ClaimTerms) { c.CollateralItemID = big.NewInt(8) },
		"offer_expiration":      func(c *domain.ClaimTerms) { c.OfferExpiration++ },
		"lend_token":            func(c *domain.ClaimTerms) { c.LendToken = other },
		"lend_amount":           func(c *domain.ClaimTerms) { c.LendAmount = big.NewInt(1) },
		"loan_duration":         func(c *domain.ClaimTerms) { c.LoanDuration++ },
		"repay_token":           func(c *domain.ClaimTerms) { c.RepayToken = other },
		"repay_amount":          func(c *domain.ClaimTerms) { c.RepayAmount = big.NewInt(1) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			terms := sampleTerms()
			mutate(&terms)
			got, err := ClaimHash(terms)
			if err != nil {
				t.Fatalf("claim hash: %v", err)
			}
			if got == baseHash {
				t.Fatalf("changing %s did not change the claim hash", name)
			}
		})
	}
}

func TestClaimHashSwappedAdjacentAmountsDiffer(t *testing.T) {
	a := sampleTerms()
	a.LendAmount = big.NewInt(5)
	a.RepayAmount = big.NewInt(7)
	b := sampleTerms()
	b.LendAmount = big.NewInt(7)
	b.RepayAmount = big.NewInt(5)
	ha, _ := ClaimHash(a)
	hb, _ := ClaimHash(b)
	if ha == hb {
		t.Fatal("swapping amounts produced the same hash")
	}
}

func TestClaimHashRejectsOutOfRangeIntegers(t *testing.T) {
	cases := map[string]func(*domain.ClaimTerms){
		"nil item":        func(c *domain.ClaimTerms) { c.CollateralItemID = nil },
		"negative amount": func(c *domain.ClaimTerms) { c.LendAmount = big.NewInt(-1) },
		"too wide": func(c *domain.ClaimTerms) {
			c.RepayAmount = new(big.Int).Lsh(big.NewInt(1), 256)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			terms := sampleTerms()
			mutate(&terms)
			if _, err := ClaimHash(terms); err != domain.ErrInvalidClaimTerms {
				t.Fatalf("expected ErrInvalidClaimTerms, got %v", err)
			}
		})
	}
}

func sampleTerms() domain.ClaimTerms {
	return domain.ClaimTerms{
		Lender:               common.HexToAddress("0x1111111111111111111111111111111111111111"),
		CollateralCollection: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		CollateralItemID:     big.NewInt(7),
		OfferExpiration:      1700000000,
		LendToken:            common.HexToAddress("0x3333333333333333333333333333333333333333"),
		LendAmount:           big.NewInt(1000),
		LoanDuration:         60,
		RepayToken:           common.HexToAddress("0x4444444444444444444444444444444444444444"),
		RepayAmount:          big.NewInt(1100),
	}
}

func mustBig(t *testing.T, value string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		t.Fatalf("invalid integer %q", value)
	}
	return v
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
