package domain

// OriginationPolicyInput is the document handed to the origination policy.
// Integer amounts travel as decimal strings so no precision is lost.
type OriginationPolicyInput struct {
	ClaimHash string           `json:"claim_hash"`
	Root      string           `json:"root"`
	Caller    string           `json:"caller"`
	Now       int64            `json:"now"`
	Terms     PolicyClaimTerms `json:"terms"`
}

type PolicyClaimTerms struct {
	Lender               string  `json:"lender"`
	CollateralCollection string  `json:"collateral_collection"`
	CollateralItemID     string  `json:"collateral_item_id"`
	OfferExpiration      uint64  `json:"offer_expiration"`
	LendToken            string  `json:"lend_token"`
	LendAmount           string  `json:"lend_amount"`
	LendAmountFloat      float64 `json:"lend_amount_float"`
	LoanDuration         uint64  `json:"loan_duration"`
	RepayToken           string  `json:"repay_token"`
	RepayAmount          string  `json:"repay_amount"`
	RepayAmountFloat     float64 `json:"repay_amount_float"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
