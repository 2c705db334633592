package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// LoanRepository holds active loans. Get and Delete return ErrNotFound for
// an absent claim; Insert returns ErrLoanExists for a present one.
type LoanRepository interface {
	Get(ctx context.Context, claimHash common.Hash) (*Loan, error)
	Insert(ctx context.Context, loan Loan) error
	Delete(ctx context.Context, claimHash common.Hash) error
	List(ctx context.Context, filter LoanFilter) ([]Loan, error)
}

// RootRepository records deactivated roots. Deactivate keeps the first
// record when called twice for one root.
type RootRepository interface {
	Deactivate(ctx context.Context, d RootDeactivation) error
	Get(ctx context.Context, root common.Hash) (*RootDeactivation, error)
}

type LoanEventRepository interface {
	Append(ctx context.Context, event LoanEvent) (LoanEvent, error)
	ListByClaim(ctx context.Context, claimHash common.Hash) ([]LoanEvent, error)
}

// LedgerStore groups the ledger's repositories. Writes made through the
// store passed to fn are committed together when fn returns nil and
// discarded otherwise.
type LedgerStore interface {
	Loans() LoanRepository
	Roots() RootRepository
	Events() LoanEventRepository
	WithTx(ctx context.Context, fn func(tx LedgerStore) error) error
}
