package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

// RootRegistry is a one-way active/deactivated flag per root. It does not
// check who deactivates a root; LoanLedger.DeactivateRoot does.
type RootRegistry struct {
	Roots domain.RootRepository
	Clock Clock
}

func NewRootRegistry(roots domain.RootRepository, clock Clock) *RootRegistry {
	return &RootRegistry{
		Roots: roots,
		Clock: clock,
	}
}

func (r *RootRegistry) Deactivate(ctx context.Context, root common.Hash, caller common.Address) error {
	if r == nil || r.Roots == nil {
		return errors.New("root repository is required")
	}
	return r.Roots.Deactivate(ctx, domain.RootDeactivation{
		Root:          root,
		DeactivatedBy: caller,
		DeactivatedAt: r.now().UTC(),
	})
}

// IsActive is true for roots never deactivated. Storage errors are returned
// so callers fail closed.
func (r *RootRegistry) IsActive(ctx context.Context, root common.Hash) (bool, error) {
	if r == nil || r.Roots == nil {
		return false, errors.New("root repository is required")
	}
	_, err := r.Roots.Get(ctx, root)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (r *RootRegistry) Deactivation(ctx context.Context, root common.Hash) (*domain.RootDeactivation, error) {
	if r == nil || r.Roots == nil {
		return nil, errors.New("root repository is required")
	}
	return r.Roots.Get(ctx, root)
}

func (r *RootRegistry) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock()
}
