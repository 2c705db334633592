package domain

import "errors"

var (
	ErrInvalidClaimTerms = errors.New("invalid claim terms")
	ErrOfferExpired      = errors.New("the offer is expired")
	ErrRootDeactivated   = errors.New("this claim root had been deactivated")
	ErrInvalidProof      = errors.New("invalid proof")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrPolicyDenied      = errors.New("origination policy denied the offer")

	ErrLoanExists    = errors.New("loan already exists")
	ErrLoanNotFound  = errors.New("loan does not exist or was already repaid")
	ErrReentrantCall = errors.New("re-entrant ledger call")

	ErrNotBorrower    = errors.New("before default time, only borrower can repay")
	ErrNotLender      = errors.New("only lender can default a loan")
	ErrLoanNotExpired = errors.New("cannot default until loan expiration")
	ErrNotRootSigner  = errors.New("only the signer of a root can deactivate it")
	ErrUnauthorized   = errors.New("unauthorized")

	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotItemHolder         = errors.New("not the current holder of the item")
	ErrNotApproved           = errors.New("transfer not approved by holder")

	ErrNotFound = errors.New("not found")
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindStateConflict ErrorKind = "state_conflict"
	KindAuthorization ErrorKind = "authorization"
	KindCustody       ErrorKind = "custody"
	KindInternal      ErrorKind = "internal"
)

// KindOf classifies err into the ledger's error taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidClaimTerms),
		errors.Is(err, ErrOfferExpired),
		errors.Is(err, ErrRootDeactivated),
		errors.Is(err, ErrInvalidProof),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrPolicyDenied):
		return KindValidation
	case errors.Is(err, ErrLoanExists),
		errors.Is(err, ErrLoanNotFound),
		errors.Is(err, ErrReentrantCall):
		return KindStateConflict
	case errors.Is(err, ErrNotBorrower),
		errors.Is(err, ErrNotLender),
		errors.Is(err, ErrLoanNotExpired),
		errors.Is(err, ErrNotRootSigner),
		errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientAllowance),
		errors.Is(err, ErrNotItemHolder),
		errors.Is(err, ErrNotApproved):
		return KindCustody
	}
	return KindInternal
}
