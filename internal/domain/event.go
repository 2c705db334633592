package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type LoanEventKind string

const (
	LoanEventCreated         LoanEventKind = "loan_created"
	LoanEventRepaid          LoanEventKind = "loan_repaid"
	LoanEventDefaulted       LoanEventKind = "loan_defaulted"
	LoanEventRootDeactivated LoanEventKind = "root_deactivated"
)

// LoanEvent is an append-only journal entry written in the same transaction
// as the state change it describes.
type LoanEvent struct {
	ID        string
	ClaimHash common.Hash
	Root      common.Hash
	Kind      LoanEventKind
	Actor     common.Address
	Payload   map[string]any
	CreatedAt time.Time
}
