package custodymem

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// Seed is the initial state of a development book, loaded by the daemon
// when no chain-backed custody is configured.
type Seed struct {
	Balances []struct {
		Token  common.Address `json:"token"`
		Holder common.Address `json:"holder"`
		Amount string         `json:"amount"`
	} `json:"balances"`
	Allowances []struct {
		Token   common.Address `json:"token"`
		Owner   common.Address `json:"owner"`
		Spender common.Address `json:"spender"`
		Amount  string         `json:"amount"`
	} `json:"allowances"`
	Items []struct {
		Collection common.Address `json:"collection"`
		ItemID     string         `json:"item_id"`
		Owner      common.Address `json:"owner"`
	} `json:"items"`
	Operators []struct {
		Collection common.Address `json:"collection"`
		Owner      common.Address `json:"owner"`
		Operator   common.Address `json:"operator"`
	} `json:"operators"`
}

func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read custody seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode custody seed: %w", err)
	}
	return seed, nil
}

// Apply mints and approves everything in seed. It stops at the first
// malformed entry; entries before it stay applied.
func (b *Book) Apply(seed Seed) error {
	for i, e := range seed.Balances {
		amount, err := seedAmount(e.Amount)
		if err != nil {
			return fmt.Errorf("balances[%d]: %w", i, err)
		}
		b.Mint(e.Token, e.Holder, amount)
	}
	for i, e := range seed.Allowances {
		amount, err := seedAmount(e.Amount)
		if err != nil {
			return fmt.Errorf("allowances[%d]: %w", i, err)
		}
		b.Approve(e.Token, e.Owner, e.Spender, amount)
	}
	for i, e := range seed.Items {
		id, err := seedAmount(e.ItemID)
		if err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
		if err := b.MintItem(e.Collection, id, e.Owner); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	for _, e := range seed.Operators {
		b.SetApprovalForAll(e.Collection, e.Owner, e.Operator, true)
	}
	return nil
}

func seedAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return v, nil
}
