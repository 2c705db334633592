package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

type Clock func() time.Time

type ClaimHasher interface {
	ClaimHash(terms domain.ClaimTerms) (common.Hash, error)
}

type MerkleVerifier interface {
	VerifyProof(leaf, root common.Hash, proof []common.Hash) bool
}

type OriginationPolicy interface {
	Evaluate(ctx context.Context, input domain.OriginationPolicyInput) (domain.PolicyEvaluation, error)
}
