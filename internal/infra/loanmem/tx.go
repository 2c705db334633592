package loanmem

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

type loanOp struct {
	claimHash common.Hash
	loan      *domain.Loan // nil deletes
}

// tx stages writes against a Store. Reads see the staged state on top of
// the committed one. Nested WithTx calls join the outer transaction.
type tx struct {
	base   *Store
	loans  map[common.Hash]*domain.Loan
	ops    []loanOp
	roots  map[common.Hash]domain.RootDeactivation
	events []domain.LoanEvent
}

func newTx(base *Store) *tx {
	return &tx{
		base:  base,
		loans: make(map[common.Hash]*domain.Loan),
		roots: make(map[common.Hash]domain.RootDeactivation),
	}
}

func (t *tx) Loans() domain.LoanRepository       { return txLoans{t} }
func (t *tx) Roots() domain.RootRepository       { return txRoots{t} }
func (t *tx) Events() domain.LoanEventRepository { return txEvents{t} }

func (t *tx) WithTx(ctx context.Context, fn func(tx domain.LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t)
}

// commit re-checks every staged loan write against the committed state, so
// a transaction that raced another writer fails as a whole.
func (t *tx) commit() error {
	t.base.mu.Lock()
	defer t.base.mu.Unlock()

	present := make(map[common.Hash]bool)
	exists := func(h common.Hash) bool {
		if v, ok := present[h]; ok {
			return v
		}
		_, ok := t.base.loans[h]
		return ok
	}
	for _, op := range t.ops {
		if op.loan != nil && exists(op.claimHash) {
			return domain.ErrLoanExists
		}
		if op.loan == nil && !exists(op.claimHash) {
			return domain.ErrNotFound
		}
		present[op.claimHash] = op.loan != nil
	}

	for hash, loan := range t.loans {
		if loan == nil {
			delete(t.base.loans, hash)
			continue
		}
		t.base.loans[hash] = cloneLoan(*loan)
	}
	for root, d := range t.roots {
		if _, ok := t.base.roots[root]; !ok {
			t.base.roots[root] = d
		}
	}
	t.base.events = append(t.base.events, t.events...)
	return nil
}

func (t *tx) getLoan(claimHash common.Hash) (domain.Loan, bool) {
	if staged, ok := t.loans[claimHash]; ok {
		if staged == nil {
			return domain.Loan{}, false
		}
		return *staged, true
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	loan, ok := t.base.loans[claimHash]
	return loan, ok
}

type txLoans struct{ t *tx }

func (r txLoans) Get(ctx context.Context, claimHash common.Hash) (*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loan, ok := r.t.getLoan(claimHash)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneLoan(loan)
	return &out, nil
}

func (r txLoans) Insert(ctx context.Context, loan domain.Loan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.t.getLoan(loan.ClaimHash); ok {
		return domain.ErrLoanExists
	}
	staged := cloneLoan(loan)
	r.t.loans[loan.ClaimHash] = &staged
	r.t.ops = append(r.t.ops, loanOp{claimHash: loan.ClaimHash, loan: &staged})
	return nil
}

func (r txLoans) Delete(ctx context.Context, claimHash common.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.t.getLoan(claimHash); !ok {
		return domain.ErrNotFound
	}
	r.t.loans[claimHash] = nil
	r.t.ops = append(r.t.ops, loanOp{claimHash: claimHash})
	return nil
}

func (r txLoans) List(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.t.base.mu.RLock()
	defer r.t.base.mu.RUnlock()
	return filterLoans(r.t.base.loans, r.t.loans, filter), nil
}

type txRoots struct{ t *tx }

func (r txRoots) Deactivate(ctx context.Context, d domain.RootDeactivation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.Get(ctx, d.Root); err == nil {
		return nil
	}
	r.t.roots[d.Root] = d
	return nil
}

func (r txRoots) Get(ctx context.Context, root common.Hash) (*domain.RootDeactivation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d, ok := r.t.roots[root]; ok {
		return &d, nil
	}
	r.t.base.mu.RLock()
	defer r.t.base.mu.RUnlock()
	if d, ok := r.t.base.roots[root]; ok {
		return &d, nil
	}
	return nil, domain.ErrNotFound
}

type txEvents struct{ t *tx }

func (r txEvents) Append(ctx context.Context, event domain.LoanEvent) (domain.LoanEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.LoanEvent{}, err
	}
	event = cloneEvent(event)
	r.t.events = append(r.t.events, event)
	return event, nil
}

func (r txEvents) ListByClaim(ctx context.Context, claimHash common.Hash) ([]domain.LoanEvent, error) {
	committed, err := storeEvents{r.t.base}.ListByClaim(ctx, claimHash)
	if err != nil {
		return nil, err
	}
	for _, event := range r.t.events {
		if event.ClaimHash == claimHash {
			committed = append(committed, cloneEvent(event))
		}
	}
	return committed, nil
}
