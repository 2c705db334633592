package loanmem

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

var (
	lenderA   = common.HexToAddress("0xa1")
	lenderB   = common.HexToAddress("0xb1")
	borrowerA = common.HexToAddress("0xa2")
)

func testLoan(id byte, lender, borrower common.Address, createdAt time.Time) domain.Loan {
	return domain.Loan{
		ClaimHash:        common.BytesToHash([]byte{id}),
		Lender:           lender,
		Borrower:         borrower,
		CollateralItemID: big.NewInt(int64(id)),
		RepayAmount:      big.NewInt(110),
		LendAmount:       big.NewInt(100),
		Fee:              big.NewInt(1),
		CreatedAt:        createdAt,
		LoanDuration:     60,
	}
}

func TestInsertGetDelete(t *testing.T) {
	ctx := context.Background()
	store := New()
	loan := testLoan(1, lenderA, borrowerA, time.Unix(100, 0))

	if err := store.Loans().Insert(ctx, loan); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Loans().Insert(ctx, loan); !errors.Is(err, domain.ErrLoanExists) {
		t.Fatalf("expected ErrLoanExists, got %v", err)
	}
	got, err := store.Loans().Get(ctx, loan.ClaimHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.RepayAmount.SetInt64(0)
	again, _ := store.Loans().Get(ctx, loan.ClaimHash)
	if again.RepayAmount.Int64() != 110 {
		t.Fatal("returned loan aliases stored state")
	}
	if err := store.Loans().Delete(ctx, loan.ClaimHash); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Loans().Get(ctx, loan.ClaimHash); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Loans().Delete(ctx, loan.ClaimHash); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	loan := testLoan(2, lenderA, borrowerA, time.Unix(100, 0))
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Insert(ctx, loan); err != nil {
			return err
		}
		if _, err := tx.Events().Append(ctx, domain.LoanEvent{ClaimHash: loan.ClaimHash, Kind: domain.LoanEventCreated}); err != nil {
			return err
		}
		if _, err := tx.Loans().Get(ctx, loan.ClaimHash); err != nil {
			t.Fatalf("tx should read its own write: %v", err)
		}
		if _, err := store.Loans().Get(ctx, loan.ClaimHash); !errors.Is(err, domain.ErrNotFound) {
			t.Fatal("uncommitted write visible outside the transaction")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.Loans().Get(ctx, loan.ClaimHash); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("rolled back insert is visible")
	}
	events, _ := store.Events().ListByClaim(ctx, loan.ClaimHash)
	if len(events) != 0 {
		t.Fatalf("expected no events after rollback, got %d", len(events))
	}
}

func TestWithTxCommitsTogether(t *testing.T) {
	ctx := context.Background()
	store := New()
	loan := testLoan(3, lenderA, borrowerA, time.Unix(100, 0))
	root := common.HexToHash("0xfeed")

	err := store.WithTx(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Insert(ctx, loan); err != nil {
			return err
		}
		if err := tx.Roots().Deactivate(ctx, domain.RootDeactivation{Root: root, DeactivatedBy: lenderA}); err != nil {
			return err
		}
		_, err := tx.Events().Append(ctx, domain.LoanEvent{ClaimHash: loan.ClaimHash, Kind: domain.LoanEventCreated})
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := store.Loans().Get(ctx, loan.ClaimHash); err != nil {
		t.Fatalf("loan not committed: %v", err)
	}
	if _, err := store.Roots().Get(ctx, root); err != nil {
		t.Fatalf("root not committed: %v", err)
	}
	events, _ := store.Events().ListByClaim(ctx, loan.ClaimHash)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestConflictingCommitFails(t *testing.T) {
	ctx := context.Background()
	store := New()
	loan := testLoan(4, lenderA, borrowerA, time.Unix(100, 0))

	err := store.WithTx(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Insert(ctx, loan); err != nil {
			return err
		}
		// Another writer commits the same claim first.
		return store.Loans().Insert(ctx, loan)
	})
	if !errors.Is(err, domain.ErrLoanExists) {
		t.Fatalf("expected ErrLoanExists from commit, got %v", err)
	}
	got, err := store.Loans().List(ctx, domain.LoanFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one loan, got %d", len(got))
	}
}

func TestDeleteThenInsertInOneTx(t *testing.T) {
	ctx := context.Background()
	store := New()
	loan := testLoan(5, lenderA, borrowerA, time.Unix(100, 0))
	if err := store.Loans().Insert(ctx, loan); err != nil {
		t.Fatalf("insert: %v", err)
	}
	replacement := loan
	replacement.Borrower = lenderB
	err := store.WithTx(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Delete(ctx, loan.ClaimHash); err != nil {
			return err
		}
		return tx.Loans().Insert(ctx, replacement)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	got, _ := store.Loans().Get(ctx, loan.ClaimHash)
	if got.Borrower != lenderB {
		t.Fatal("replacement not committed")
	}
}

func TestRootDeactivationKeepsFirstRecord(t *testing.T) {
	ctx := context.Background()
	store := New()
	root := common.HexToHash("0xbeef")
	first := domain.RootDeactivation{Root: root, DeactivatedBy: lenderA, DeactivatedAt: time.Unix(1, 0)}
	second := domain.RootDeactivation{Root: root, DeactivatedBy: lenderB, DeactivatedAt: time.Unix(2, 0)}
	if err := store.Roots().Deactivate(ctx, first); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := store.Roots().Deactivate(ctx, second); err != nil {
		t.Fatalf("deactivate again: %v", err)
	}
	got, err := store.Roots().Get(ctx, root)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DeactivatedBy != lenderA {
		t.Fatal("second deactivation overwrote the first")
	}
	if _, err := store.Roots().Get(ctx, common.HexToHash("0x01")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unseen root, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	store := New()
	loans := []domain.Loan{
		testLoan(10, lenderA, borrowerA, time.Unix(300, 0)),
		testLoan(11, lenderA, lenderB, time.Unix(100, 0)),
		testLoan(12, lenderB, borrowerA, time.Unix(200, 0)),
	}
	for _, loan := range loans {
		if err := store.Loans().Insert(ctx, loan); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	byLender, _ := store.Loans().List(ctx, domain.LoanFilter{Lender: &lenderA})
	if len(byLender) != 2 || byLender[0].ClaimHash != loans[1].ClaimHash {
		t.Fatalf("unexpected lender listing: %+v", byLender)
	}
	byBorrower, _ := store.Loans().List(ctx, domain.LoanFilter{Borrower: &borrowerA})
	if len(byBorrower) != 2 || byBorrower[0].ClaimHash != loans[2].ClaimHash {
		t.Fatalf("unexpected borrower listing: %+v", byBorrower)
	}
	limited, _ := store.Loans().List(ctx, domain.LoanFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := New()
	if err := store.WithTx(ctx, func(domain.LedgerStore) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
