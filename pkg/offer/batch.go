package offer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"lendeefi/internal/domain"
	"lendeefi/internal/infra/crypto"
	"lendeefi/internal/infra/merkle"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Offer is one redeemable entry of a published batch.
type Offer struct {
	Terms     Terms    `json:"terms"`
	ClaimHash string   `json:"claim_hash"`
	Proof     []string `json:"proof"`
}

// Batch is the document a lender hands to borrowers: every offer with its
// inclusion proof plus the signed root.
type Batch struct {
	Root      string  `json:"root"`
	Signer    string  `json:"signer,omitempty"`
	Signature string  `json:"signature,omitempty"`
	Offers    []Offer `json:"offers"`
}

// Build hashes every offer and computes its proof against the batch root.
// Two offers with identical terms are rejected: they would share one claim.
func Build(terms []Terms) (*Batch, error) {
	if len(terms) == 0 {
		return nil, errors.New("batch needs at least one offer")
	}
	hashes := make([]common.Hash, len(terms))
	seen := make(map[common.Hash]int, len(terms))
	for i, t := range terms {
		ct, err := t.ClaimTerms()
		if err != nil {
			return nil, fmt.Errorf("offer %d: %w", i, err)
		}
		h, err := crypto.ClaimHash(ct)
		if err != nil {
			return nil, fmt.Errorf("offer %d: %w", i, err)
		}
		if j, dup := seen[h]; dup {
			return nil, fmt.Errorf("offer %d duplicates offer %d", i, j)
		}
		seen[h] = i
		hashes[i] = h
	}
	tree, err := merkle.NewTree(hashes)
	if err != nil {
		return nil, err
	}
	b := &Batch{Root: tree.Root().Hex(), Offers: make([]Offer, len(terms))}
	for i, h := range hashes {
		proof, err := tree.Proof(h)
		if err != nil {
			return nil, fmt.Errorf("offer %d: %w", i, err)
		}
		b.Offers[i] = Offer{Terms: terms[i], ClaimHash: h.Hex(), Proof: HexProof(proof)}
	}
	return b, nil
}

// Sign attaches the lender's personal-message signature over the root. The
// key must belong to the lender named in every offer.
func (b *Batch) Sign(key *ecdsa.PrivateKey) error {
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)
	for i, o := range b.Offers {
		lender, err := ParseAddress("lender", o.Terms.Lender)
		if err != nil {
			return fmt.Errorf("offer %d: %w", i, err)
		}
		if lender != signer {
			return fmt.Errorf("offer %d: lender %s is not the signer %s", i, lender.Hex(), signer.Hex())
		}
	}
	root, err := ParseHash("root", b.Root)
	if err != nil {
		return err
	}
	sig, err := crypto.SignRoot(key, root)
	if err != nil {
		return err
	}
	b.Signer = signer.Hex()
	b.Signature = hexutil.Encode(sig)
	return nil
}

// Verify checks every proof against the root and, when present, that the
// signature recovers to the declared signer.
func (b *Batch) Verify() error {
	root, err := ParseHash("root", b.Root)
	if err != nil {
		return err
	}
	for i, o := range b.Offers {
		ct, err := o.Terms.ClaimTerms()
		if err != nil {
			return fmt.Errorf("offer %d: %w", i, err)
		}
		h, err := crypto.ClaimHash(ct)
		if err != nil {
			return fmt.Errorf("offer %d: %w", i, err)
		}
		if o.ClaimHash != "" && common.HexToHash(o.ClaimHash) != h {
			return fmt.Errorf("offer %d: claim hash does not match terms", i)
		}
		proof, err := ParseProof(o.Proof)
		if err != nil {
			return fmt.Errorf("offer %d: %w", i, err)
		}
		if !merkle.VerifyProof(h, root, proof) {
			return fmt.Errorf("offer %d: proof does not lead to root", i)
		}
	}
	if b.Signature == "" {
		return nil
	}
	sig, err := crypto.ParseSignature(b.Signature)
	if err != nil {
		return err
	}
	got, err := crypto.RecoverSigner(domain.PersonalDigest(root), sig)
	if err != nil {
		return err
	}
	if b.Signer != "" && common.HexToAddress(b.Signer) != got {
		return fmt.Errorf("signature recovers to %s, not %s", got.Hex(), b.Signer)
	}
	return nil
}
