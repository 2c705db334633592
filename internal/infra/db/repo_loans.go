package db

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"lendeefi/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct {
	db *gorm.DB
	// lock takes row locks on reads; set inside a transaction.
	lock bool
}

func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Get(ctx context.Context, claimHash common.Hash) (*domain.Loan, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model LoanModel
	err := q.Where("claim_hash = ?", claimHash.Hex()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	loan, err := loanFromModel(model)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *LoanRepository) Insert(ctx context.Context, loan domain.Loan) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := loanModelFromDomain(loan)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrLoanExists
		}
		return err
	}
	return nil
}

func (r *LoanRepository) Delete(ctx context.Context, claimHash common.Hash) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).Where("claim_hash = ?", claimHash.Hex()).Delete(&LoanModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *LoanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Order("created_at ASC").Order("claim_hash ASC")
	if filter.Lender != nil {
		q = q.Where("lender = ?", filter.Lender.Hex())
	}
	if filter.Borrower != nil {
		q = q.Where("borrower = ?", filter.Borrower.Hex())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var models []LoanModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Loan, 0, len(models))
	for _, model := range models {
		loan, err := loanFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, loan)
	}
	return out, nil
}

func loanModelFromDomain(loan domain.Loan) LoanModel {
	return LoanModel{
		ClaimHash:            loan.ClaimHash.Hex(),
		Borrower:             loan.Borrower.Hex(),
		Lender:               loan.Lender.Hex(),
		CollateralCollection: loan.CollateralCollection.Hex(),
		CollateralItemID:     decimal(loan.CollateralItemID),
		RepayToken:           loan.RepayToken.Hex(),
		RepayAmount:          decimal(loan.RepayAmount),
		LoanDuration:         strconv.FormatUint(loan.LoanDuration, 10),
		Root:                 loan.Root.Hex(),
		LendToken:            loan.LendToken.Hex(),
		LendAmount:           decimal(loan.LendAmount),
		Fee:                  decimal(loan.Fee),
		CreatedAt:            loan.CreatedAt.UTC(),
	}
}

func loanFromModel(model LoanModel) (domain.Loan, error) {
	loan := domain.Loan{
		ClaimHash:            common.HexToHash(model.ClaimHash),
		Borrower:             common.HexToAddress(model.Borrower),
		Lender:               common.HexToAddress(model.Lender),
		CollateralCollection: common.HexToAddress(model.CollateralCollection),
		RepayToken:           common.HexToAddress(model.RepayToken),
		Root:                 common.HexToHash(model.Root),
		LendToken:            common.HexToAddress(model.LendToken),
		CreatedAt:            model.CreatedAt.UTC(),
	}
	var err error
	if loan.LoanDuration, err = strconv.ParseUint(model.LoanDuration, 10, 64); err != nil {
		return domain.Loan{}, fmt.Errorf("loan %s: duration: %w", model.ClaimHash, err)
	}
	for _, f := range []struct {
		name string
		text string
		dst  **big.Int
	}{
		{"collateral_item_id", model.CollateralItemID, &loan.CollateralItemID},
		{"repay_amount", model.RepayAmount, &loan.RepayAmount},
		{"lend_amount", model.LendAmount, &loan.LendAmount},
		{"fee", model.Fee, &loan.Fee},
	} {
		v, ok := new(big.Int).SetString(f.text, 10)
		if !ok {
			return domain.Loan{}, fmt.Errorf("loan %s: invalid %s %q", model.ClaimHash, f.name, f.text)
		}
		*f.dst = v
	}
	return loan, nil
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
