package merkle

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrEmptyTree    = errors.New("empty merkle tree")
	ErrInvalidIndex = errors.New("invalid leaf index")
	ErrLeafNotFound = errors.New("leaf not in tree")
)

// HashPair combines two nodes with keccak256 over the lower hash followed by
// the higher one. The rule is commutative, so a proof carries no left/right
// flags.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return ethcrypto.Keccak256Hash(a[:], b[:])
}

// ProcessProof folds proof into leaf and returns the implied root.
func ProcessProof(leaf common.Hash, proof []common.Hash) common.Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = HashPair(computed, sibling)
	}
	return computed
}

// VerifyProof reports whether proof places leaf under root. An empty proof
// verifies only when leaf is the root itself.
func VerifyProof(leaf, root common.Hash, proof []common.Hash) bool {
	return ProcessProof(leaf, proof) == root
}
