package db

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"lendeefi/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestLoanModelRoundTrip(t *testing.T) {
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	loan := domain.Loan{
		ClaimHash:            common.HexToHash("0x5374fc45"),
		Borrower:             common.HexToAddress("0xb0"),
		Lender:               common.HexToAddress("0xa0"),
		CollateralCollection: common.HexToAddress("0xc0"),
		CollateralItemID:     huge,
		RepayToken:           common.HexToAddress("0xd0"),
		RepayAmount:          big.NewInt(1_100),
		CreatedAt:            time.Unix(1_700_000_000, 0).UTC(),
		LoanDuration:         ^uint64(0),
		Root:                 common.HexToHash("0x24c2"),
		LendToken:            common.HexToAddress("0xd0"),
		LendAmount:           big.NewInt(1_000),
		Fee:                  big.NewInt(1),
	}
	got, err := loanFromModel(loanModelFromDomain(loan))
	if err != nil {
		t.Fatalf("from model: %v", err)
	}
	if got.ClaimHash != loan.ClaimHash || got.Borrower != loan.Borrower || got.Root != loan.Root {
		t.Fatalf("identity fields changed: %+v", got)
	}
	if got.CollateralItemID.Cmp(huge) != 0 || got.LoanDuration != loan.LoanDuration {
		t.Fatalf("wide values changed: item %s duration %d", got.CollateralItemID, got.LoanDuration)
	}
	if !got.CreatedAt.Equal(loan.CreatedAt) {
		t.Fatalf("created at changed: %v", got.CreatedAt)
	}
}

func TestLoanFromModelRejectsBadNumbers(t *testing.T) {
	model := loanModelFromDomain(domain.Loan{
		CollateralItemID: big.NewInt(1),
		RepayAmount:      big.NewInt(1),
		LendAmount:       big.NewInt(1),
		Fee:              big.NewInt(0),
	})
	model.RepayAmount = "1e3"
	if _, err := loanFromModel(model); err == nil {
		t.Fatalf("expected invalid amount error")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)) {
		t.Fatalf("expected translated duplicate key")
	}
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("expected raw unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestNilStoreFailsClosed(t *testing.T) {
	store := New(nil)
	if err := store.WithTx(context.Background(), func(domain.LedgerStore) error { return nil }); !errors.Is(err, errDBUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := store.Loans().Get(context.Background(), common.Hash{}); !errors.Is(err, errDBUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
