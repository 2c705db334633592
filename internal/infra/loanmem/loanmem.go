package loanmem

import (
	"bytes"
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

// Store is an in-memory LedgerStore. Transactions stage their writes and
// apply them atomically on commit.
type Store struct {
	mu     sync.RWMutex
	loans  map[common.Hash]domain.Loan
	roots  map[common.Hash]domain.RootDeactivation
	events []domain.LoanEvent
}

func New() *Store {
	return &Store{
		loans: make(map[common.Hash]domain.Loan),
		roots: make(map[common.Hash]domain.RootDeactivation),
	}
}

func (s *Store) Loans() domain.LoanRepository       { return storeLoans{s} }
func (s *Store) Roots() domain.RootRepository       { return storeRoots{s} }
func (s *Store) Events() domain.LoanEventRepository { return storeEvents{s} }

func (s *Store) WithTx(ctx context.Context, fn func(tx domain.LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type storeLoans struct{ s *Store }

func (r storeLoans) Get(ctx context.Context, claimHash common.Hash) (*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	loan, ok := r.s.loans[claimHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneLoan(loan)
	return &out, nil
}

func (r storeLoans) Insert(ctx context.Context, loan domain.Loan) error {
	return r.s.WithTx(ctx, func(tx domain.LedgerStore) error {
		return tx.Loans().Insert(ctx, loan)
	})
}

func (r storeLoans) Delete(ctx context.Context, claimHash common.Hash) error {
	return r.s.WithTx(ctx, func(tx domain.LedgerStore) error {
		return tx.Loans().Delete(ctx, claimHash)
	})
}

func (r storeLoans) List(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return filterLoans(r.s.loans, nil, filter), nil
}

type storeRoots struct{ s *Store }

func (r storeRoots) Deactivate(ctx context.Context, d domain.RootDeactivation) error {
	return r.s.WithTx(ctx, func(tx domain.LedgerStore) error {
		return tx.Roots().Deactivate(ctx, d)
	})
}

func (r storeRoots) Get(ctx context.Context, root common.Hash) (*domain.RootDeactivation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.roots[root]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

type storeEvents struct{ s *Store }

func (r storeEvents) Append(ctx context.Context, event domain.LoanEvent) (domain.LoanEvent, error) {
	var out domain.LoanEvent
	err := r.s.WithTx(ctx, func(tx domain.LedgerStore) error {
		var err error
		out, err = tx.Events().Append(ctx, event)
		return err
	})
	return out, err
}

func (r storeEvents) ListByClaim(ctx context.Context, claimHash common.Hash) ([]domain.LoanEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.LoanEvent, 0)
	for _, event := range r.s.events {
		if event.ClaimHash == claimHash {
			out = append(out, cloneEvent(event))
		}
	}
	return out, nil
}

func filterLoans(base map[common.Hash]domain.Loan, staged map[common.Hash]*domain.Loan, filter domain.LoanFilter) []domain.Loan {
	out := make([]domain.Loan, 0)
	for hash, loan := range base {
		if _, overridden := staged[hash]; overridden {
			continue
		}
		if filter.Matches(loan) {
			out = append(out, cloneLoan(loan))
		}
	}
	for _, loan := range staged {
		if loan != nil && filter.Matches(*loan) {
			out = append(out, cloneLoan(*loan))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ClaimHash[:], out[j].ClaimHash[:]) < 0
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func cloneLoan(loan domain.Loan) domain.Loan {
	loan.CollateralItemID = cloneBig(loan.CollateralItemID)
	loan.RepayAmount = cloneBig(loan.RepayAmount)
	loan.LendAmount = cloneBig(loan.LendAmount)
	loan.Fee = cloneBig(loan.Fee)
	return loan
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneEvent(event domain.LoanEvent) domain.LoanEvent {
	if event.Payload != nil {
		payload := make(map[string]any, len(event.Payload))
		for k, v := range event.Payload {
			payload[k] = v
		}
		event.Payload = payload
	}
	return event
}
