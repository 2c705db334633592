package domain

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Loan is the record of an active claim. It exists exactly while the claim is
// active and is deleted on repayment or default.
type Loan struct {
	ClaimHash            common.Hash
	Borrower             common.Address
	Lender               common.Address
	CollateralCollection common.Address
	CollateralItemID     *big.Int
	RepayToken           common.Address
	RepayAmount          *big.Int
	CreatedAt            time.Time
	LoanDuration         uint64

	Root       common.Hash
	LendToken  common.Address
	LendAmount *big.Int
	Fee        *big.Int
}

// DefaultAt is the first unix second at which the lender may default.
func (l Loan) DefaultAt() uint64 {
	return addSeconds(UnixSeconds(l.CreatedAt), l.LoanDuration)
}

// OpenRepaymentAt is the first unix second at which any caller may repay.
func (l Loan) OpenRepaymentAt(grace time.Duration) uint64 {
	if grace < 0 {
		grace = 0
	}
	return addSeconds(l.DefaultAt(), uint64(grace/time.Second))
}

// LoanFilter narrows ListLoans. Nil fields are ignored; Limit <= 0 means no
// limit.
type LoanFilter struct {
	Lender   *common.Address
	Borrower *common.Address
	Limit    int
}

func (f LoanFilter) Matches(l Loan) bool {
	if f.Lender != nil && *f.Lender != l.Lender {
		return false
	}
	if f.Borrower != nil && *f.Borrower != l.Borrower {
		return false
	}
	return true
}

// RootDeactivation marks a signed root as revoked. Absence means active.
type RootDeactivation struct {
	Root          common.Hash
	DeactivatedBy common.Address
	DeactivatedAt time.Time
}

// UnixSeconds converts t to the ledger's timestamp unit, clamping times
// before the epoch to zero.
func UnixSeconds(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}
	return 0
}

func addSeconds(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
