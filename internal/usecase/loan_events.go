package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"lendeefi/internal/domain"
)

// LoanEventEmitter appends lifecycle events. Callers pass the repository of
// the transaction the state change runs in.
type LoanEventEmitter struct {
	Repo  domain.LoanEventRepository
	Clock Clock
}

func NewLoanEventEmitter(repo domain.LoanEventRepository, clock Clock) *LoanEventEmitter {
	return &LoanEventEmitter{
		Repo:  repo,
		Clock: clock,
	}
}

func (e *LoanEventEmitter) Emit(ctx context.Context, event domain.LoanEvent) (domain.LoanEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.LoanEvent{}, errors.New("loan event repository required")
	}
	if event.Kind == "" {
		return domain.LoanEvent{}, errors.New("loan event kind required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *LoanEventEmitter) EmitLoanCreated(ctx context.Context, loan domain.Loan) error {
	_, err := e.Emit(ctx, domain.LoanEvent{
		ClaimHash: loan.ClaimHash,
		Root:      loan.Root,
		Kind:      domain.LoanEventCreated,
		Actor:     loan.Borrower,
		CreatedAt: loan.CreatedAt,
		Payload: map[string]any{
			"borrower":              loan.Borrower.Hex(),
			"lender":                loan.Lender.Hex(),
			"collateral_collection": loan.CollateralCollection.Hex(),
			"collateral_item_id":    loan.CollateralItemID.String(),
			"lend_token":            loan.LendToken.Hex(),
			"lend_amount":           loan.LendAmount.String(),
			"fee":                   loan.Fee.String(),
			"repay_token":           loan.RepayToken.Hex(),
			"repay_amount":          loan.RepayAmount.String(),
			"loan_duration":         loan.LoanDuration,
		},
	})
	return err
}

func (e *LoanEventEmitter) EmitLoanRepaid(ctx context.Context, loan domain.Loan, payer common.Address, at time.Time) error {
	_, err := e.Emit(ctx, domain.LoanEvent{
		ClaimHash: loan.ClaimHash,
		Root:      loan.Root,
		Kind:      domain.LoanEventRepaid,
		Actor:     payer,
		CreatedAt: at,
		Payload: map[string]any{
			"repaid_by":    payer.Hex(),
			"borrower":     loan.Borrower.Hex(),
			"lender":       loan.Lender.Hex(),
			"repay_token":  loan.RepayToken.Hex(),
			"repay_amount": loan.RepayAmount.String(),
		},
	})
	return err
}

func (e *LoanEventEmitter) EmitLoanDefaulted(ctx context.Context, loan domain.Loan, at time.Time) error {
	_, err := e.Emit(ctx, domain.LoanEvent{
		ClaimHash: loan.ClaimHash,
		Root:      loan.Root,
		Kind:      domain.LoanEventDefaulted,
		Actor:     loan.Lender,
		CreatedAt: at,
		Payload: map[string]any{
			"borrower":              loan.Borrower.Hex(),
			"lender":                loan.Lender.Hex(),
			"collateral_collection": loan.CollateralCollection.Hex(),
			"collateral_item_id":    loan.CollateralItemID.String(),
		},
	})
	return err
}

func (e *LoanEventEmitter) EmitRootDeactivated(ctx context.Context, root common.Hash, caller common.Address, at time.Time) error {
	_, err := e.Emit(ctx, domain.LoanEvent{
		Root:      root,
		Kind:      domain.LoanEventRootDeactivated,
		Actor:     caller,
		CreatedAt: at,
		Payload: map[string]any{
			"root": root.Hex(),
		},
	})
	return err
}

func (e *LoanEventEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
