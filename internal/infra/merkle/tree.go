package merkle

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Tree is a complete binary tree stored in an array with the root at index
// 0 and the children of i at 2i+1 and 2i+2. Leaves are sorted ascending and
// fill the tail of the array in reverse, which yields the same roots and
// proofs as the OpenZeppelin SimpleMerkleTree tooling used by lenders.
type Tree struct {
	nodes  []common.Hash
	leaves []common.Hash
}

func NewTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	sorted := append([]common.Hash(nil), leaves...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	nodes := make([]common.Hash, 2*len(sorted)-1)
	for i, leaf := range sorted {
		nodes[len(nodes)-1-i] = leaf
	}
	for i := len(nodes) - 1 - len(sorted); i >= 0; i-- {
		nodes[i] = HashPair(nodes[2*i+1], nodes[2*i+2])
	}
	return &Tree{nodes: nodes, leaves: sorted}, nil
}

func (t *Tree) Root() common.Hash {
	return t.nodes[0]
}

func (t *Tree) Len() int {
	return len(t.leaves)
}

// Leaves returns the leaves in tree order (ascending).
func (t *Tree) Leaves() []common.Hash {
	return append([]common.Hash(nil), t.leaves...)
}

// Proof returns the sibling path for leaf, lowest level first.
func (t *Tree) Proof(leaf common.Hash) ([]common.Hash, error) {
	for i, candidate := range t.leaves {
		if candidate == leaf {
			return t.ProofAt(i)
		}
	}
	return nil, ErrLeafNotFound
}

// ProofAt returns the sibling path for the i-th leaf in tree order.
func (t *Tree) ProofAt(i int) ([]common.Hash, error) {
	if i < 0 || i >= len(t.leaves) {
		return nil, ErrInvalidIndex
	}
	index := len(t.nodes) - 1 - i
	proof := make([]common.Hash, 0)
	for index > 0 {
		proof = append(proof, t.nodes[siblingIndex(index)])
		index = (index - 1) / 2
	}
	return proof, nil
}

func siblingIndex(i int) int {
	if i%2 == 1 {
		return i + 1
	}
	return i - 1
}
