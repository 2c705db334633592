package crypto

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lendeefi/internal/domain"
)

const wordSize = 32

// packedClaimLen is the tag, four addresses and five 256-bit words.
const packedClaimLen = len(domain.ClaimDomainTag) + 4*common.AddressLength + 5*wordSize

// PackClaim returns the tightly packed encoding of terms: the domain tag,
// then every field in declaration order with addresses as 20 bytes and
// integers as 32-byte big-endian words. There are no separators.
func PackClaim(terms domain.ClaimTerms) ([]byte, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, packedClaimLen)
	buf = append(buf, domain.ClaimDomainTag...)
	buf = append(buf, terms.Lender.Bytes()...)
	buf = append(buf, terms.CollateralCollection.Bytes()...)
	buf = appendBig(buf, terms.CollateralItemID)
	buf = appendUint64(buf, terms.OfferExpiration)
	buf = append(buf, terms.LendToken.Bytes()...)
	buf = appendBig(buf, terms.LendAmount)
	buf = appendUint64(buf, terms.LoanDuration)
	buf = append(buf, terms.RepayToken.Bytes()...)
	buf = appendBig(buf, terms.RepayAmount)
	return buf, nil
}

// ClaimHash is keccak256 over PackClaim(terms). It only fails when an
// integer field does not fit in 256 bits.
func ClaimHash(terms domain.ClaimTerms) (common.Hash, error) {
	packed, err := PackClaim(terms)
	if err != nil {
		return common.Hash{}, err
	}
	return ethcrypto.Keccak256Hash(packed), nil
}

func appendBig(buf []byte, v *big.Int) []byte {
	return append(buf, math.PaddedBigBytes(v, wordSize)...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var word [wordSize]byte
	binary.BigEndian.PutUint64(word[wordSize-8:], v)
	return append(buf, word[:]...)
}
