package crypto

import (
	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

// Service exposes the package functions behind the ledger's ports.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) ClaimHash(terms domain.ClaimTerms) (common.Hash, error) {
	return ClaimHash(terms)
}

func (s *Service) RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	return RecoverSigner(digest, sig)
}
