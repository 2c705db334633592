package db

import "time"

// Amounts, item ids and durations are stored as decimal text: uint256 and
// uint64 values overflow bigint.
type LoanModel struct {
	ClaimHash            string    `gorm:"column:claim_hash;primaryKey;size:66"`
	Borrower             string    `gorm:"size:42;index;not null"`
	Lender               string    `gorm:"size:42;index;not null"`
	CollateralCollection string    `gorm:"size:42;not null"`
	CollateralItemID     string    `gorm:"type:text;not null"`
	RepayToken           string    `gorm:"size:42;not null"`
	RepayAmount          string    `gorm:"type:text;not null"`
	LoanDuration         string    `gorm:"type:text;not null"`
	Root                 string    `gorm:"size:66;index;not null"`
	LendToken            string    `gorm:"size:42;not null"`
	LendAmount           string    `gorm:"type:text;not null"`
	Fee                  string    `gorm:"type:text;not null"`
	CreatedAt            time.Time `gorm:"not null"`
}

func (LoanModel) TableName() string { return "loans" }

type RootDeactivationModel struct {
	Root          string    `gorm:"primaryKey;size:66"`
	DeactivatedBy string    `gorm:"size:42;not null"`
	DeactivatedAt time.Time `gorm:"not null"`
}

func (RootDeactivationModel) TableName() string { return "root_deactivations" }

type LoanEventModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Seq         int64     `gorm:"autoIncrement;uniqueIndex"`
	ClaimHash   string    `gorm:"size:66;index"`
	Root        string    `gorm:"size:66"`
	Kind        string    `gorm:"not null"`
	Actor       string    `gorm:"size:42;not null"`
	PayloadJSON []byte    `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (LoanEventModel) TableName() string { return "loan_events" }

func allModels() []any {
	return []any{&LoanModel{}, &RootDeactivationModel{}, &LoanEventModel{}}
}
