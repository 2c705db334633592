//go:build integration
// +build integration

package db

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"lendeefi/internal/domain"
	"lendeefi/internal/infra/db/testdb"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestStoreLoanLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	loan := sampleLoan(1)

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
	if got.RepayAmount.Cmp(loan.RepayAmount) != 0 || got.Borrower != loan.Borrower {
		t.Fatalf("unexpected loan %+v", got)
	}
	lender := loan.Lender
	list, err := store.Loans().List(ctx, domain.LoanFilter{Lender: &lender})
	if err != nil || len(list) != 1 {
		t.Fatalf("list by lender: %v %d", err, len(list))
	}
	if err := store.Loans().Delete(ctx, loan.ClaimHash); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Loans().Delete(ctx, loan.ClaimHash); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreWithTxRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	loan := sampleLoan(2)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Insert(ctx, loan); err != nil {
			return err
		}
		if _, err := tx.Events().Append(ctx, domain.LoanEvent{ClaimHash: loan.ClaimHash, Kind: domain.LoanEventCreated}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.Loans().Get(ctx, loan.ClaimHash); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected rolled back loan, got %v", err)
	}
	events, err := store.Events().ListByClaim(ctx, loan.ClaimHash)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no events, got %d %v", len(events), err)
	}
}

func TestStoreRootDeactivationKeepsFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	root := common.HexToHash("0x24c293a5")
	first := domain.RootDeactivation{Root: root, DeactivatedBy: common.HexToAddress("0xa0"), DeactivatedAt: time.Unix(100, 0)}
	second := domain.RootDeactivation{Root: root, DeactivatedBy: common.HexToAddress("0xa1"), DeactivatedAt: time.Unix(200, 0)}

	if _, err := store.Roots().Get(ctx, root); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unseen root, got %v", err)
	}
	for _, d := range []domain.RootDeactivation{first, second} {
		if err := store.Roots().Deactivate(ctx, d); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
	}
	got, err := store.Roots().Get(ctx, root)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DeactivatedBy != first.DeactivatedBy {
		t.Fatalf("expected first record to win, got %s", got.DeactivatedBy.Hex())
	}
}

func TestStoreEventsOrdered(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	claim := common.HexToHash("0x89160dc9")
	at := time.Unix(1_700_000_000, 0)
	for _, kind := range []domain.LoanEventKind{domain.LoanEventCreated, domain.LoanEventRepaid, domain.LoanEventCreated} {
		if _, err := store.Events().Append(ctx, domain.LoanEvent{ClaimHash: claim, Kind: kind, CreatedAt: at, Payload: map[string]any{"n": 1}}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	events, err := store.Events().ListByClaim(ctx, claim)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 || events[1].Kind != domain.LoanEventRepaid {
		t.Fatalf("unexpected events %+v", events)
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := testdb.NewDSN(t)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := New(gdb)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleLoan(seed int64) domain.Loan {
	return domain.Loan{
		ClaimHash:            common.BigToHash(big.NewInt(seed)),
		Borrower:             common.HexToAddress("0xb0"),
		Lender:               common.HexToAddress("0xa0"),
		CollateralCollection: common.HexToAddress("0xc0"),
		CollateralItemID:     big.NewInt(seed),
		RepayToken:           common.HexToAddress("0xd0"),
		RepayAmount:          big.NewInt(1_100),
		CreatedAt:            time.Unix(1_700_000_000, 0).UTC(),
		LoanDuration:         86_400,
		Root:                 common.HexToHash("0x24c2"),
		LendToken:            common.HexToAddress("0xd0"),
		LendAmount:           big.NewInt(1_000),
		Fee:                  big.NewInt(1),
	}
}
