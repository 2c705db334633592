package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lendeefi/internal/domain"
	"lendeefi/internal/infra/crypto"
	"lendeefi/internal/usecase"
	"lendeefi/pkg/offer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const maxListLimit = 500

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createLoanRequest struct {
	Terms     offer.Terms `json:"terms"`
	Root      string      `json:"root"`
	Proof     []string    `json:"proof"`
	Signature string      `json:"signature"`
}

type deactivateRootRequest struct {
	Signature string `json:"signature"`
}

type loanResponse struct {
	ClaimHash            string `json:"claim_hash"`
	Borrower             string `json:"borrower"`
	Lender               string `json:"lender"`
	CollateralCollection string `json:"collateral_collection"`
	CollateralItemID     string `json:"collateral_item_id"`
	RepayToken           string `json:"repay_token"`
	RepayAmount          string `json:"repay_amount"`
	CreatedAt            int64  `json:"created_at"`
	LoanDuration         uint64 `json:"loan_duration"`
	DefaultAt            uint64 `json:"default_at"`
	OpenRepaymentAt      uint64 `json:"open_repayment_at"`
	Root                 string `json:"root"`
	LendToken            string `json:"lend_token"`
	LendAmount           string `json:"lend_amount"`
	Fee                  string `json:"fee"`
}

type loanStatusResponse struct {
	Active bool          `json:"active"`
	Loan   *loanResponse `json:"loan,omitempty"`
}

type eventResponse struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	ClaimHash string         `json:"claim_hash,omitempty"`
	Root      string         `json:"root,omitempty"`
	Actor     string         `json:"actor"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"created_at"`
}

type rootResponse struct {
	Root          string `json:"root"`
	Active        bool   `json:"active"`
	DeactivatedBy string `json:"deactivated_by,omitempty"`
	DeactivatedAt string `json:"deactivated_at,omitempty"`
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost && c.Request.URL.Path == "/v1/claims:hash" {
		s.handleClaimHash(c)
		return
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) handleClaimHash(c *gin.Context) {
	if !s.enforceRateLimit(c, routeClaimsHash, nil) {
		return
	}
	var terms offer.Terms
	if err := c.ShouldBindJSON(&terms); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	ct, err := terms.ClaimTerms()
	if err != nil {
		writeError(c, err)
		return
	}
	h, err := s.ledger.ComputeClaimHash(ct)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claim_hash": h.Hex()})
}

func (s *Server) handleCreateLoan(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok || !s.enforceRateLimit(c, routeLoansCreate, &caller) {
		return
	}
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	terms, err := req.Terms.ClaimTerms()
	if err != nil {
		writeError(c, err)
		return
	}
	root, err := offer.ParseHash("root", req.Root)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	proof, err := offer.ParseProof(req.Proof)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	sig, ok := parseSignature(c, req.Signature)
	if !ok {
		return
	}

	loan, err := s.ledger.CreateLoan(c.Request.Context(), usecase.CreateLoanRequest{
		Terms:     terms,
		Root:      root,
		Proof:     proof,
		Signature: sig,
		Caller:    caller,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.buildLoanResponse(*loan))
}

func (s *Server) handleGetLoan(c *gin.Context) {
	claimHash, ok := pathHash(c, "claim_hash")
	if !ok {
		return
	}
	loan, err := s.ledger.GetLoan(c.Request.Context(), claimHash)
	if errors.Is(err, domain.ErrLoanNotFound) {
		c.JSON(http.StatusOK, loanStatusResponse{Active: false})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	resp := s.buildLoanResponse(*loan)
	c.JSON(http.StatusOK, loanStatusResponse{Active: true, Loan: &resp})
}

func (s *Server) handleListLoans(c *gin.Context) {
	var filter domain.LoanFilter
	for _, q := range []struct {
		name string
		dst  **common.Address
	}{
		{"lender", &filter.Lender},
		{"borrower", &filter.Borrower},
	} {
		raw := strings.TrimSpace(c.Query(q.name))
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", q.name+" must be a hex address")
			return
		}
		addr := common.HexToAddress(raw)
		*q.dst = &addr
	}
	if filter.Lender == nil && filter.Borrower == nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "lender or borrower is required")
		return
	}
	filter.Limit = maxListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		if n < maxListLimit {
			filter.Limit = n
		}
	}

	loans, err := s.ledger.ListLoans(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]loanResponse, 0, len(loans))
	for _, loan := range loans {
		out = append(out, s.buildLoanResponse(loan))
	}
	c.JSON(http.StatusOK, gin.H{"loans": out})
}

func (s *Server) handleListEvents(c *gin.Context) {
	claimHash, ok := pathHash(c, "claim_hash")
	if !ok {
		return
	}
	events, err := s.ledger.ListEvents(c.Request.Context(), claimHash)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, buildEventResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (s *Server) handleRepayLoan(c *gin.Context) {
	s.handleClose(c, routeLoansRepay, s.ledger.RepayLoan)
}

func (s *Server) handleDefaultLoan(c *gin.Context) {
	s.handleClose(c, routeLoansDefault, s.ledger.DefaultLoan)
}

type closeFunc func(ctx context.Context, claimHash common.Hash, caller common.Address) (*domain.Loan, error)

func (s *Server) handleClose(c *gin.Context, routeID string, op closeFunc) {
	caller, ok := s.requireCaller(c)
	if !ok || !s.enforceRateLimit(c, routeID, &caller) {
		return
	}
	claimHash, ok := pathHash(c, "claim_hash")
	if !ok {
		return
	}
	loan, err := op(c.Request.Context(), claimHash, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.buildLoanResponse(*loan))
}

func (s *Server) handleGetRoot(c *gin.Context) {
	root, ok := pathHash(c, "root")
	if !ok {
		return
	}
	d, err := s.ledger.RootDeactivation(c.Request.Context(), root)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusOK, rootResponse{Root: root.Hex(), Active: true})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rootResponse{
		Root:          root.Hex(),
		Active:        false,
		DeactivatedBy: d.DeactivatedBy.Hex(),
		DeactivatedAt: d.DeactivatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDeactivateRoot(c *gin.Context) {
	caller, ok := s.requireCaller(c)
	if !ok || !s.enforceRateLimit(c, routeRootDeactivate, &caller) {
		return
	}
	root, ok := pathHash(c, "root")
	if !ok {
		return
	}
	var req deactivateRootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	sig, ok := parseSignature(c, req.Signature)
	if !ok {
		return
	}
	if err := s.ledger.DeactivateRoot(c.Request.Context(), usecase.DeactivateRootRequest{
		Root:      root,
		Signature: sig,
		Caller:    caller,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rootResponse{Root: root.Hex(), Active: false, DeactivatedBy: caller.Hex()})
}

func (s *Server) buildLoanResponse(loan domain.Loan) loanResponse {
	return loanResponse{
		ClaimHash:            loan.ClaimHash.Hex(),
		Borrower:             loan.Borrower.Hex(),
		Lender:               loan.Lender.Hex(),
		CollateralCollection: loan.CollateralCollection.Hex(),
		CollateralItemID:     loan.CollateralItemID.String(),
		RepayToken:           loan.RepayToken.Hex(),
		RepayAmount:          loan.RepayAmount.String(),
		CreatedAt:            loan.CreatedAt.Unix(),
		LoanDuration:         loan.LoanDuration,
		DefaultAt:            loan.DefaultAt(),
		OpenRepaymentAt:      loan.OpenRepaymentAt(s.ledger.GraceWindow()),
		Root:                 loan.Root.Hex(),
		LendToken:            loan.LendToken.Hex(),
		LendAmount:           loan.LendAmount.String(),
		Fee:                  loan.Fee.String(),
	}
}

func buildEventResponse(e domain.LoanEvent) eventResponse {
	out := eventResponse{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Actor:     e.Actor.Hex(),
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.ClaimHash != (common.Hash{}) {
		out.ClaimHash = e.ClaimHash.Hex()
	}
	if e.Root != (common.Hash{}) {
		out.Root = e.Root.Hex()
	}
	return out
}

func pathHash(c *gin.Context, name string) (common.Hash, bool) {
	h, err := offer.ParseHash(name, c.Param(name))
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return common.Hash{}, false
	}
	return h, true
}

func parseSignature(c *gin.Context, value string) ([]byte, bool) {
	sig, err := crypto.ParseSignature(value)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_SIGNATURE_ENCODING", err.Error())
		return nil, false
	}
	return sig, true
}

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrInvalidClaimTerms, "INVALID_CLAIM_TERMS"},
	{domain.ErrOfferExpired, "OFFER_EXPIRED"},
	{domain.ErrRootDeactivated, "ROOT_DEACTIVATED"},
	{domain.ErrInvalidProof, "INVALID_PROOF"},
	{domain.ErrInvalidSignature, "INVALID_SIGNATURE"},
	{domain.ErrPolicyDenied, "POLICY_DENIED"},
	{domain.ErrLoanExists, "LOAN_EXISTS"},
	{domain.ErrLoanNotFound, "LOAN_NOT_FOUND"},
	{domain.ErrReentrantCall, "REENTRANT_CALL"},
	{domain.ErrNotBorrower, "NOT_BORROWER"},
	{domain.ErrNotLender, "NOT_LENDER"},
	{domain.ErrLoanNotExpired, "LOAN_NOT_EXPIRED"},
	{domain.ErrNotRootSigner, "NOT_ROOT_SIGNER"},
	{domain.ErrUnauthorized, "UNAUTHORIZED"},
	{domain.ErrInsufficientBalance, "INSUFFICIENT_BALANCE"},
	{domain.ErrInsufficientAllowance, "INSUFFICIENT_ALLOWANCE"},
	{domain.ErrNotItemHolder, "NOT_ITEM_HOLDER"},
	{domain.ErrNotApproved, "NOT_APPROVED"},
	{domain.ErrNotFound, "NOT_FOUND"},
}

func writeError(c *gin.Context, err error) {
	code := "INTERNAL"
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			code = e.code
			break
		}
	}

	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindStateConflict:
		status = http.StatusConflict
		if errors.Is(err, domain.ErrLoanNotFound) {
			status = http.StatusNotFound
		}
	case domain.KindAuthorization:
		status = http.StatusForbidden
		if errors.Is(err, domain.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
	case domain.KindCustody:
		status = http.StatusUnprocessableEntity
	default:
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
