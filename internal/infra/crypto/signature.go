package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lendeefi/internal/domain"
)

const SignatureLength = ethcrypto.SignatureLength

var ErrMalformedSignature = errors.New("malformed signature")

// RecoverSigner returns the address whose key produced sig over digest.
// sig is r || s || v with v in {0, 1, 27, 28}. High-s signatures are
// rejected so a signature has exactly one accepted encoding.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	v := normalized[64]
	if v >= 27 {
		v -= 27
	}
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !ethcrypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: invalid r, s or v", ErrMalformedSignature)
	}
	normalized[64] = v

	pub, err := ethcrypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// SignDigest signs digest and returns r || s || v with v in {27, 28}, the
// encoding wallets produce.
func SignDigest(key *ecdsa.PrivateKey, digest common.Hash) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignRoot produces the personal-message signature a lender publishes for a
// batch root.
func SignRoot(key *ecdsa.PrivateKey, root common.Hash) ([]byte, error) {
	return SignDigest(key, domain.PersonalDigest(root))
}

// ParseSignature decodes a 0x-prefixed hex signature.
func ParseSignature(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		value = "0x" + value
	}
	sig, err := hexutil.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	return sig, nil
}

// ParsePrivateKey decodes a hex secp256k1 private key, with or without 0x.
func ParsePrivateKey(value string) (*ecdsa.PrivateKey, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	key, err := ethcrypto.HexToECDSA(value)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
