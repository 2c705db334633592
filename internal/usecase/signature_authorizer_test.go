package usecase

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lendeefi/internal/domain"
	"lendeefi/internal/infra/crypto"
)

type stubRecoverer struct {
	signer common.Address
	err    error
	digest common.Hash
}

func (r *stubRecoverer) RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	r.digest = digest
	return r.signer, r.err
}

func TestSignatureAuthorizer_RecoverAndCheck(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)
	root := common.HexToHash("0x1234")
	sig, err := crypto.SignRoot(key, root)
	if err != nil {
		t.Fatalf("sign root: %v", err)
	}
	auth := NewSignatureAuthorizer(crypto.NewService())

	if !auth.RecoverAndCheck(root, sig, signer) {
		t.Fatal("expected signature to authorize its signer")
	}
	if auth.RecoverAndCheck(root, sig, common.HexToAddress("0x01")) {
		t.Fatal("signature authorized an address that did not sign")
	}
	if auth.RecoverAndCheck(common.HexToHash("0x5678"), sig, signer) {
		t.Fatal("signature authorized a root it does not cover")
	}
	if auth.RecoverAndCheck(root, sig[:10], signer) {
		t.Fatal("truncated signature authorized")
	}
}

func TestSignatureAuthorizer_AppliesPersonalPrefix(t *testing.T) {
	rec := &stubRecoverer{signer: common.HexToAddress("0xaa")}
	auth := NewSignatureAuthorizer(rec)
	root := common.HexToHash("0x99")
	auth.RecoverAndCheck(root, make([]byte, 65), rec.signer)
	want := ethcrypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), root.Bytes())
	if rec.digest != want {
		t.Fatalf("recoverer got digest %s, want %s", rec.digest.Hex(), want.Hex())
	}
}

func TestSignatureAuthorizer_FailsClosed(t *testing.T) {
	auth := NewSignatureAuthorizer(&stubRecoverer{err: errors.New("bad curve point")})
	if auth.RecoverAndCheck(common.Hash{}, nil, common.Address{}) {
		t.Fatal("recovery error authorized")
	}
	if _, err := auth.Recover(common.Hash{}, nil); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	zero := NewSignatureAuthorizer(&stubRecoverer{})
	if zero.RecoverAndCheck(common.Hash{}, nil, common.Address{}) {
		t.Fatal("zero address recovery authorized the zero address")
	}

	var missing *SignatureAuthorizer
	if missing.RecoverAndCheck(common.Hash{}, nil, common.Address{}) {
		t.Fatal("nil authorizer authorized")
	}
}
