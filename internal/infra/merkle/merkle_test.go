package merkle

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type treeVector struct {
	Leaves []string `json:"leaves"`
	Root   string   `json:"root"`
	Proofs []struct {
		Leaf  string   `json:"leaf"`
		Proof []string `json:"proof"`
	} `json:"proofs"`
}

func TestTreeVectors(t *testing.T) {
	for _, name := range []string{"merkle_tree.json", "merkle_tree_5.json"} {
		t.Run(name, func(t *testing.T) {
			vec := loadTreeVector(t, name)
			tree, err := NewTree(decodeHashes(vec.Leaves))
			if err != nil {
				t.Fatalf("build tree: %v", err)
			}
			if tree.Root() != common.HexToHash(vec.Root) {
				t.Fatalf("root mismatch: got %s want %s", tree.Root().Hex(), vec.Root)
			}
			for _, p := range vec.Proofs {
				leaf := common.HexToHash(p.Leaf)
				proof, err := tree.Proof(leaf)
				if err != nil {
					t.Fatalf("proof for %s: %v", p.Leaf, err)
				}
				if !hashesEqual(proof, decodeHashes(p.Proof)) {
					t.Fatalf("proof mismatch for %s", p.Leaf)
				}
				if !VerifyProof(leaf, tree.Root(), proof) {
					t.Fatalf("proof for %s did not verify", p.Leaf)
				}
			}
		})
	}
}

func TestTreeRootIndependentOfInputOrder(t *testing.T) {
	leaves := testLeaves(6)
	reversed := make([]common.Hash, len(leaves))
	for i := range leaves {
		reversed[len(leaves)-1-i] = leaves[i]
	}
	a, err := NewTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	b, err := NewTree(reversed)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if a.Root() != b.Root() {
		t.Fatal("leaf order changed the root")
	}
}

func TestEveryLeafVerifies(t *testing.T) {
	for size := 1; size <= 17; size++ {
		leaves := testLeaves(size)
		tree, err := NewTree(leaves)
		if err != nil {
			t.Fatalf("size %d: build tree: %v", size, err)
		}
		for _, leaf := range leaves {
			proof, err := tree.Proof(leaf)
			if err != nil {
				t.Fatalf("size %d: proof: %v", size, err)
			}
			if !VerifyProof(leaf, tree.Root(), proof) {
				t.Fatalf("size %d: leaf %s did not verify", size, leaf.Hex())
			}
		}
		outsider := ethcrypto.Keccak256Hash([]byte("outsider"))
		proof, _ := tree.ProofAt(0)
		if VerifyProof(outsider, tree.Root(), proof) {
			t.Fatalf("size %d: leaf outside the tree verified", size)
		}
	}
}

func TestSingleLeafTree(t *testing.T) {
	leaf := ethcrypto.Keccak256Hash([]byte("only"))
	tree, err := NewTree([]common.Hash{leaf})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if tree.Root() != leaf {
		t.Fatal("single leaf tree root must equal the leaf")
	}
	proof, err := tree.Proof(leaf)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if len(proof) != 0 {
		t.Fatalf("expected empty proof, got %d elements", len(proof))
	}
	if !VerifyProof(leaf, leaf, nil) {
		t.Fatal("empty proof must verify a leaf equal to the root")
	}
	if VerifyProof(leaf, ethcrypto.Keccak256Hash([]byte("other")), nil) {
		t.Fatal("empty proof must not verify against a different root")
	}
}

func TestProofAgainstOtherRootFails(t *testing.T) {
	a, _ := NewTree(testLeaves(4))
	b, _ := NewTree(testLeaves(5))
	leaf := testLeaves(4)[1]
	proof, err := a.Proof(leaf)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if VerifyProof(leaf, b.Root(), proof) {
		t.Fatal("proof verified against a root it was not built for")
	}
}

func TestHashPairIsCommutative(t *testing.T) {
	x := ethcrypto.Keccak256Hash([]byte("x"))
	y := ethcrypto.Keccak256Hash([]byte("y"))
	if HashPair(x, y) != HashPair(y, x) {
		t.Fatal("hash pair depends on argument order")
	}
}

func TestTreeErrors(t *testing.T) {
	if _, err := NewTree(nil); !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
	tree, _ := NewTree(testLeaves(3))
	if _, err := tree.ProofAt(3); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if _, err := tree.Proof(common.Hash{}); !errors.Is(err, ErrLeafNotFound) {
		t.Fatalf("expected ErrLeafNotFound, got %v", err)
	}
}

func testLeaves(n int) []common.Hash {
	out := make([]common.Hash, n)
	for i := range out {
		out[i] = ethcrypto.Keccak256Hash([]byte{byte(i)})
	}
	return out
}

func loadTreeVector(t *testing.T, name string) treeVector {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "testvectors", "v0", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var vec treeVector
	if err := json.Unmarshal(data, &vec); err != nil {
		t.Fatalf("unmarshal %s: %v", name, err)
	}
	return vec
}

func decodeHashes(values []string) []common.Hash {
	out := make([]common.Hash, len(values))
	for i, v := range values {
		out[i] = common.HexToHash(v)
	}
	return out
}

func hashesEqual(a, b []common.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
