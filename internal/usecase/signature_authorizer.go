package usecase

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

// SignatureAuthorizer checks that a root was signed by a given address.
// Roots are signed as EIP-191 personal messages, so the digest handed to the
// recoverer carries the "\x19Ethereum Signed Message:\n32" prefix.
type SignatureAuthorizer struct {
	Recoverer domain.SignerRecoverer
}

func NewSignatureAuthorizer(recoverer domain.SignerRecoverer) *SignatureAuthorizer {
	return &SignatureAuthorizer{Recoverer: recoverer}
}

// Recover returns the signer of root. Every failure is reported as
// ErrInvalidSignature.
func (a *SignatureAuthorizer) Recover(root common.Hash, sig []byte) (common.Address, error) {
	if a == nil || a.Recoverer == nil {
		return common.Address{}, errors.New("signer recoverer is required")
	}
	signer, err := a.Recoverer.RecoverSigner(domain.PersonalDigest(root), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if signer == (common.Address{}) {
		return common.Address{}, domain.ErrInvalidSignature
	}
	return signer, nil
}

func (a *SignatureAuthorizer) RecoverAndCheck(root common.Hash, sig []byte, expectedSigner common.Address) bool {
	signer, err := a.Recover(root, sig)
	if err != nil {
		return false
	}
	return signer == expectedSigner
}
