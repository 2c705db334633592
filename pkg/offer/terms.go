// Package offer builds, signs and encodes batches of loan offers the way a
// lender publishes them to borrowers.
package offer

import (
	"fmt"
	"math/big"
	"strings"

	"lendeefi/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Terms is the wire form of domain.ClaimTerms. Addresses are hex, integers
// above 64 bits are decimal strings.
type Terms struct {
	Lender               string `json:"lender"`
	CollateralCollection string `json:"collateral_collection"`
	CollateralItemID     string `json:"collateral_item_id"`
	OfferExpiration      uint64 `json:"offer_expiration"`
	LendToken            string `json:"lend_token"`
	LendAmount           string `json:"lend_amount"`
	LoanDuration         uint64 `json:"loan_duration"`
	RepayToken           string `json:"repay_token"`
	RepayAmount          string `json:"repay_amount"`
}

func FromClaimTerms(t domain.ClaimTerms) Terms {
	return Terms{
		Lender:               t.Lender.Hex(),
		CollateralCollection: t.CollateralCollection.Hex(),
		CollateralItemID:     decimal(t.CollateralItemID),
		OfferExpiration:      t.OfferExpiration,
		LendToken:            t.LendToken.Hex(),
		LendAmount:           decimal(t.LendAmount),
		LoanDuration:         t.LoanDuration,
		RepayToken:           t.RepayToken.Hex(),
		RepayAmount:          decimal(t.RepayAmount),
	}
}

// ClaimTerms parses and range-checks t. Errors wrap
// domain.ErrInvalidClaimTerms.
func (t Terms) ClaimTerms() (domain.ClaimTerms, error) {
	var (
		out domain.ClaimTerms
		err error
	)
	if out.Lender, err = ParseAddress("lender", t.Lender); err != nil {
		return domain.ClaimTerms{}, err
	}
	if out.CollateralCollection, err = ParseAddress("collateral_collection", t.CollateralCollection); err != nil {
		return domain.ClaimTerms{}, err
	}
	if out.LendToken, err = ParseAddress("lend_token", t.LendToken); err != nil {
		return domain.ClaimTerms{}, err
	}
	if out.RepayToken, err = ParseAddress("repay_token", t.RepayToken); err != nil {
		return domain.ClaimTerms{}, err
	}
	if out.CollateralItemID, err = ParseUint256("collateral_item_id", t.CollateralItemID); err != nil {
		return domain.ClaimTerms{}, err
	}
	if out.LendAmount, err = ParseUint256("lend_amount", t.LendAmount); err != nil {
		return domain.ClaimTerms{}, err
	}
	if out.RepayAmount, err = ParseUint256("repay_amount", t.RepayAmount); err != nil {
		return domain.ClaimTerms{}, err
	}
	out.OfferExpiration = t.OfferExpiration
	out.LoanDuration = t.LoanDuration
	return out, nil
}

func ParseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not a hex address", domain.ErrInvalidClaimTerms, field)
	}
	return common.HexToAddress(value), nil
}

// ParseUint256 accepts a decimal string, or hex with a 0x prefix.
func ParseUint256(field, value string) (*big.Int, error) {
	digits, base := strings.TrimSpace(value), 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits, base = digits[2:], 16
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok || digits == "" {
		return nil, fmt.Errorf("%w: %s is not an integer", domain.ErrInvalidClaimTerms, field)
	}
	if !domain.IsUint256(v) {
		return nil, fmt.Errorf("%w: %s out of range", domain.ErrInvalidClaimTerms, field)
	}
	return v, nil
}

// ParseHash accepts a 0x-prefixed 32-byte hex string.
func ParseHash(field, value string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(value))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s must be 0x-prefixed 32-byte hex", field)
	}
	return common.BytesToHash(b), nil
}

func ParseProof(values []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(values))
	for i, v := range values {
		h, err := ParseHash(fmt.Sprintf("proof[%d]", i), v)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func HexProof(proof []common.Hash) []string {
	out := make([]string, 0, len(proof))
	for _, h := range proof {
		out = append(out, h.Hex())
	}
	return out
}

func decimal(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
