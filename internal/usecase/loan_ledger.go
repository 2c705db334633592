package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

const DefaultGraceWindow = 7 * 24 * time.Hour

type LedgerDeps struct {
	Store     domain.LedgerStore
	Custody   domain.Custody
	Hasher    ClaimHasher
	Merkle    MerkleVerifier
	Recoverer domain.SignerRecoverer
	// Policy is optional; without it every authorized offer may originate.
	Policy OriginationPolicy
	Clock  Clock
	Logger *slog.Logger
}

type LedgerParams struct {
	// Account is the ledger's own custody account. Fees and escrowed
	// collateral are held there.
	Account    common.Address
	FeeRateBps uint16
	// GraceWindow extends the borrower-only repayment period past the loan
	// duration. Zero selects DefaultGraceWindow.
	GraceWindow time.Duration
}

type CreateLoanRequest struct {
	Terms     domain.ClaimTerms
	Root      common.Hash
	Proof     []common.Hash
	Signature []byte
	Caller    common.Address
}

type DeactivateRootRequest struct {
	Root common.Hash
	// Signature is the lender's signature over Root. It must recover to
	// Caller.
	Signature []byte
	Caller    common.Address
}

// LoanLedger drives every claim through absent -> active -> absent.
// Mutations of one claim are serialized; loan creation and root
// deactivation are mutually exclusive.
type LoanLedger struct {
	store      domain.LedgerStore
	custody    domain.Custody
	hasher     ClaimHasher
	merkle     MerkleVerifier
	signatures *SignatureAuthorizer
	policy     OriginationPolicy
	clock      Clock
	logger     *slog.Logger

	account     common.Address
	feeRateBps  uint16
	graceWindow time.Duration

	claims   claimLocks
	rootGate sync.RWMutex
}

func NewLoanLedger(deps LedgerDeps, params LedgerParams) (*LoanLedger, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("ledger store is required")
	case deps.Custody == nil:
		return nil, errors.New("custody is required")
	case deps.Hasher == nil:
		return nil, errors.New("claim hasher is required")
	case deps.Merkle == nil:
		return nil, errors.New("merkle verifier is required")
	case deps.Recoverer == nil:
		return nil, errors.New("signer recoverer is required")
	}
	if params.FeeRateBps > BasisPointsDenominator {
		return nil, fmt.Errorf("fee rate %d bps exceeds %d", params.FeeRateBps, BasisPointsDenominator)
	}
	if params.Account == (common.Address{}) {
		return nil, errors.New("ledger account is required")
	}
	if params.GraceWindow < 0 {
		return nil, errors.New("grace window must not be negative")
	}
	grace := params.GraceWindow
	if grace == 0 {
		grace = DefaultGraceWindow
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanLedger{
		store:       deps.Store,
		custody:     deps.Custody,
		hasher:      deps.Hasher,
		merkle:      deps.Merkle,
		signatures:  NewSignatureAuthorizer(deps.Recoverer),
		policy:      deps.Policy,
		clock:       clock,
		logger:      logger,
		account:     params.Account,
		feeRateBps:  params.FeeRateBps,
		graceWindow: grace,
	}, nil
}

func (l *LoanLedger) FeeRateBps() uint16 {
	return l.feeRateBps
}

func (l *LoanLedger) GraceWindow() time.Duration {
	return l.graceWindow
}

func (l *LoanLedger) Account() common.Address {
	return l.account
}

func (l *LoanLedger) ComputeClaimHash(terms domain.ClaimTerms) (common.Hash, error) {
	return l.hasher.ClaimHash(terms)
}

// CreateLoan redeems one signed offer for caller. Preconditions are checked
// in a fixed order and the first failure is returned.
func (l *LoanLedger) CreateLoan(ctx context.Context, req CreateLoanRequest) (*domain.Loan, error) {
	now := l.now()
	claimHash, err := l.hasher.ClaimHash(req.Terms)
	if err != nil {
		return nil, err
	}

	flight := inFlightFrom(ctx)
	if flight.hasClaim(claimHash) {
		return nil, domain.ErrLoanExists
	}
	if flight.active() {
		return nil, domain.ErrReentrantCall
	}
	release := l.enter(claimHash)
	defer release()
	ctx = flight.withClaim(claimHash).into(ctx)

	if domain.UnixSeconds(now) > req.Terms.OfferExpiration {
		return nil, domain.ErrOfferExpired
	}
	active, err := NewRootRegistry(l.store.Roots(), l.clock).IsActive(ctx, req.Root)
	if err != nil {
		return nil, fmt.Errorf("check root: %w", err)
	}
	if !active {
		return nil, domain.ErrRootDeactivated
	}
	if !l.merkle.VerifyProof(claimHash, req.Root, req.Proof) {
		return nil, domain.ErrInvalidProof
	}
	if !l.signatures.RecoverAndCheck(req.Root, req.Signature, req.Terms.Lender) {
		return nil, domain.ErrInvalidSignature
	}
	if _, err := l.store.Loans().Get(ctx, claimHash); err == nil {
		return nil, domain.ErrLoanExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load loan: %w", err)
	}
	if err := l.checkPolicy(ctx, claimHash, req, now); err != nil {
		return nil, err
	}

	fee := OriginationFee(req.Terms.LendAmount, l.feeRateBps)
	loan := domain.Loan{
		ClaimHash:            claimHash,
		Borrower:             req.Caller,
		Lender:               req.Terms.Lender,
		CollateralCollection: req.Terms.CollateralCollection,
		CollateralItemID:     new(big.Int).Set(req.Terms.CollateralItemID),
		RepayToken:           req.Terms.RepayToken,
		RepayAmount:          new(big.Int).Set(req.Terms.RepayAmount),
		CreatedAt:            now,
		LoanDuration:         req.Terms.LoanDuration,
		Root:                 req.Root,
		LendToken:            req.Terms.LendToken,
		LendAmount:           new(big.Int).Set(req.Terms.LendAmount),
		Fee:                  fee,
	}

	err = l.settle(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Insert(ctx, loan); err != nil {
			return err
		}
		return NewLoanEventEmitter(tx.Events(), l.clock).EmitLoanCreated(ctx, loan)
	}, func(c domain.Custody) error {
		if err := c.TransferFungible(ctx, loan.LendToken, loan.Lender, loan.Borrower, loan.LendAmount); err != nil {
			return fmt.Errorf("disburse lend amount: %w", err)
		}
		if fee.Sign() > 0 {
			if err := c.TransferFungible(ctx, loan.LendToken, loan.Lender, l.account, fee); err != nil {
				return fmt.Errorf("collect origination fee: %w", err)
			}
		}
		if err := c.TransferUnique(ctx, loan.CollateralCollection, loan.CollateralItemID, loan.Borrower, l.account); err != nil {
			return fmt.Errorf("escrow collateral: %w", err)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("loan creation rolled back", "claim_hash", claimHash.Hex(), "borrower", req.Caller.Hex(), "error", err)
		return nil, err
	}
	l.logger.Info("loan created",
		"claim_hash", claimHash.Hex(),
		"root", req.Root.Hex(),
		"lender", loan.Lender.Hex(),
		"borrower", loan.Borrower.Hex(),
		"lend_amount", loan.LendAmount.String(),
		"fee", fee.String(),
	)
	return &loan, nil
}

// RepayLoan settles an active loan. Until the grace window after the loan
// duration has passed only the borrower may repay; afterwards anyone may,
// receiving the collateral in exchange for the repay amount.
func (l *LoanLedger) RepayLoan(ctx context.Context, claimHash common.Hash, caller common.Address) (*domain.Loan, error) {
	now := l.now()
	flight := inFlightFrom(ctx)
	if flight.hasClaim(claimHash) {
		return nil, domain.ErrLoanNotFound
	}
	if flight.active() {
		return nil, domain.ErrReentrantCall
	}
	release := l.enter(claimHash)
	defer release()
	ctx = flight.withClaim(claimHash).into(ctx)

	loan, err := l.activeLoan(ctx, claimHash)
	if err != nil {
		return nil, err
	}
	if domain.UnixSeconds(now) < loan.OpenRepaymentAt(l.graceWindow) && caller != loan.Borrower {
		return nil, domain.ErrNotBorrower
	}

	err = l.settle(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Delete(ctx, claimHash); err != nil {
			return mapLoanNotFound(err)
		}
		return NewLoanEventEmitter(tx.Events(), l.clock).EmitLoanRepaid(ctx, *loan, caller, now)
	}, func(c domain.Custody) error {
		if err := c.TransferFungible(ctx, loan.RepayToken, caller, loan.Lender, loan.RepayAmount); err != nil {
			return fmt.Errorf("collect repayment: %w", err)
		}
		if err := c.TransferUnique(ctx, loan.CollateralCollection, loan.CollateralItemID, l.account, caller); err != nil {
			return fmt.Errorf("release collateral: %w", err)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("loan repayment rolled back", "claim_hash", claimHash.Hex(), "caller", caller.Hex(), "error", err)
		return nil, err
	}
	l.logger.Info("loan repaid", "claim_hash", claimHash.Hex(), "caller", caller.Hex(), "borrower", loan.Borrower.Hex())
	return loan, nil
}

// DefaultLoan hands the escrowed collateral to the lender once the loan
// duration has elapsed. No tokens move.
func (l *LoanLedger) DefaultLoan(ctx context.Context, claimHash common.Hash, caller common.Address) (*domain.Loan, error) {
	now := l.now()
	flight := inFlightFrom(ctx)
	if flight.hasClaim(claimHash) {
		return nil, domain.ErrLoanNotFound
	}
	if flight.active() {
		return nil, domain.ErrReentrantCall
	}
	release := l.enter(claimHash)
	defer release()
	ctx = flight.withClaim(claimHash).into(ctx)

	loan, err := l.activeLoan(ctx, claimHash)
	if err != nil {
		return nil, err
	}
	if caller != loan.Lender {
		return nil, domain.ErrNotLender
	}
	if domain.UnixSeconds(now) < loan.DefaultAt() {
		return nil, domain.ErrLoanNotExpired
	}

	err = l.settle(ctx, func(tx domain.LedgerStore) error {
		if err := tx.Loans().Delete(ctx, claimHash); err != nil {
			return mapLoanNotFound(err)
		}
		return NewLoanEventEmitter(tx.Events(), l.clock).EmitLoanDefaulted(ctx, *loan, now)
	}, func(c domain.Custody) error {
		if err := c.TransferUnique(ctx, loan.CollateralCollection, loan.CollateralItemID, l.account, loan.Lender); err != nil {
			return fmt.Errorf("seize collateral: %w", err)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("loan default rolled back", "claim_hash", claimHash.Hex(), "error", err)
		return nil, err
	}
	l.logger.Info("loan defaulted", "claim_hash", claimHash.Hex(), "lender", loan.Lender.Hex())
	return loan, nil
}

// DeactivateRoot revokes every unredeemed offer under a root. The caller
// proves it signed the root by presenting a signature over it.
func (l *LoanLedger) DeactivateRoot(ctx context.Context, req DeactivateRootRequest) error {
	flight := inFlightFrom(ctx)
	if flight.active() {
		return domain.ErrReentrantCall
	}
	signer, err := l.signatures.Recover(req.Root, req.Signature)
	if err != nil || signer != req.Caller {
		return domain.ErrNotRootSigner
	}

	l.rootGate.Lock()
	defer l.rootGate.Unlock()
	flight.deactivating = true
	ctx = flight.into(ctx)
	now := l.now()

	err = l.store.WithTx(ctx, func(tx domain.LedgerStore) error {
		registry := NewRootRegistry(tx.Roots(), func() time.Time { return now })
		active, err := registry.IsActive(ctx, req.Root)
		if err != nil {
			return err
		}
		if !active {
			return nil
		}
		if err := registry.Deactivate(ctx, req.Root, req.Caller); err != nil {
			return err
		}
		return NewLoanEventEmitter(tx.Events(), l.clock).EmitRootDeactivated(ctx, req.Root, req.Caller, now)
	})
	if err != nil {
		return fmt.Errorf("deactivate root: %w", err)
	}
	l.logger.Info("root deactivated", "root", req.Root.Hex(), "caller", req.Caller.Hex())
	return nil
}

func (l *LoanLedger) IsLoanActive(ctx context.Context, claimHash common.Hash) (bool, error) {
	if !inFlightFrom(ctx).active() {
		unlock := l.claims.lock(claimHash)
		defer unlock()
	}
	_, err := l.store.Loans().Get(ctx, claimHash)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *LoanLedger) GetLoan(ctx context.Context, claimHash common.Hash) (*domain.Loan, error) {
	return l.activeLoan(ctx, claimHash)
}

func (l *LoanLedger) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, error) {
	return l.store.Loans().List(ctx, filter)
}

func (l *LoanLedger) ListEvents(ctx context.Context, claimHash common.Hash) ([]domain.LoanEvent, error) {
	return l.store.Events().ListByClaim(ctx, claimHash)
}

func (l *LoanLedger) IsRootActive(ctx context.Context, root common.Hash) (bool, error) {
	return NewRootRegistry(l.store.Roots(), l.clock).IsActive(ctx, root)
}

func (l *LoanLedger) RootDeactivation(ctx context.Context, root common.Hash) (*domain.RootDeactivation, error) {
	return NewRootRegistry(l.store.Roots(), l.clock).Deactivation(ctx, root)
}

// enter takes the root gate for reading and then the claim's lock. Every
// mutating operation acquires them in this order.
func (l *LoanLedger) enter(claimHash common.Hash) func() {
	l.rootGate.RLock()
	unlock := l.claims.lock(claimHash)
	return func() {
		unlock()
		l.rootGate.RUnlock()
	}
}

// settle writes through the store and moves custody as one unit. The
// prepared transfers are committed only after the store transaction has
// committed and are discarded if it fails.
func (l *LoanLedger) settle(ctx context.Context, write func(tx domain.LedgerStore) error, transfers func(c domain.Custody) error) error {
	var pending domain.Settlement
	defer func() {
		if pending != nil {
			pending.Discard()
		}
	}()
	err := l.store.WithTx(ctx, func(tx domain.LedgerStore) error {
		if pending != nil {
			pending.Discard()
			pending = nil
		}
		if err := write(tx); err != nil {
			return err
		}
		prepared, err := l.custody.Prepare(ctx, transfers)
		if err != nil {
			return err
		}
		pending = prepared
		return nil
	})
	if err != nil {
		return err
	}
	if pending != nil {
		pending.Commit()
		pending = nil
	}
	return nil
}

func (l *LoanLedger) activeLoan(ctx context.Context, claimHash common.Hash) (*domain.Loan, error) {
	loan, err := l.store.Loans().Get(ctx, claimHash)
	if err != nil {
		return nil, mapLoanNotFound(err)
	}
	return loan, nil
}

func (l *LoanLedger) checkPolicy(ctx context.Context, claimHash common.Hash, req CreateLoanRequest, now time.Time) error {
	if l.policy == nil {
		return nil
	}
	eval, err := l.policy.Evaluate(ctx, NewOriginationPolicyInput(claimHash, req, now))
	if err != nil {
		return fmt.Errorf("evaluate origination policy: %w", err)
	}
	if !eval.Result.Allow {
		l.logger.Info("origination denied by policy", "claim_hash", claimHash.Hex(), "bundle_hash", eval.BundleHash, "deny", eval.Result.Deny)
		if len(eval.Result.Deny) > 0 {
			return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, eval.Result.Deny[0].Code)
		}
		return domain.ErrPolicyDenied
	}
	return nil
}

func (l *LoanLedger) now() time.Time {
	return l.clock().UTC().Truncate(time.Second)
}

// NewOriginationPolicyInput is the document an origination policy sees for req.
func NewOriginationPolicyInput(claimHash common.Hash, req CreateLoanRequest, now time.Time) domain.OriginationPolicyInput {
	t := req.Terms
	return domain.OriginationPolicyInput{
		ClaimHash: claimHash.Hex(),
		Root:      req.Root.Hex(),
		Caller:    req.Caller.Hex(),
		Now:       now.Unix(),
		Terms: domain.PolicyClaimTerms{
			Lender:               t.Lender.Hex(),
			CollateralCollection: t.CollateralCollection.Hex(),
			CollateralItemID:     t.CollateralItemID.String(),
			OfferExpiration:      t.OfferExpiration,
			LendToken:            t.LendToken.Hex(),
			LendAmount:           t.LendAmount.String(),
			LendAmountFloat:      bigToFloat(t.LendAmount),
			LoanDuration:         t.LoanDuration,
			RepayToken:           t.RepayToken.Hex(),
			RepayAmount:          t.RepayAmount.String(),
			RepayAmountFloat:     bigToFloat(t.RepayAmount),
		},
	}
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func mapLoanNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrLoanNotFound
	}
	return err
}
