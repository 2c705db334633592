package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimDomainTag prefixes every claim hash so lendeefi claims never collide
// with other keccak256 usages. It must match the tree-building tooling byte
// for byte.
const ClaimDomainTag = "com.lendeefi.loan|"

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ClaimTerms are the terms of a single loan offer. They are never stored
// verbatim; the ledger identifies a loan by the hash of its terms.
type ClaimTerms struct {
	Lender               common.Address
	CollateralCollection common.Address
	CollateralItemID     *big.Int
	OfferExpiration      uint64
	LendToken            common.Address
	LendAmount           *big.Int
	LoanDuration         uint64
	RepayToken           common.Address
	RepayAmount          *big.Int
}

// Validate checks that every integer field fits an unsigned 256-bit word.
func (t ClaimTerms) Validate() error {
	for _, v := range []*big.Int{t.CollateralItemID, t.LendAmount, t.RepayAmount} {
		if !IsUint256(v) {
			return ErrInvalidClaimTerms
		}
	}
	return nil
}

// IsUint256 reports whether v is non-nil and within [0, 2^256).
func IsUint256(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxUint256) <= 0
}
