package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// Custody moves balances and collateral items between accounts. The ledger
// acts as spender/operator: moving funds out of an account other than its own
// requires that account's prior authorization.
type Custody interface {
	TransferFungible(ctx context.Context, token, from, to common.Address, amount *big.Int) error
	TransferUnique(ctx context.Context, collection common.Address, itemID *big.Int, from, to common.Address) error
	// Prepare runs fn against a staged view and checks that every transfer
	// it made can be applied. Nothing takes effect until the returned
	// Settlement is committed. A failing fn leaves no Settlement behind.
	Prepare(ctx context.Context, fn func(tx Custody) error) (Settlement, error)
}

// Settlement holds prepared transfers. Exactly one of Commit or Discard
// must be called; the custody book stays reserved until then. Both are
// safe to call more than once.
type Settlement interface {
	Commit()
	Discard()
}

// PersonalDigest is the EIP-191 digest wallets sign for a 32-byte root:
// keccak256("\x19Ethereum Signed Message:\n32" || root).
func PersonalDigest(root common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(root.Bytes()))
}

// SignerRecoverer recovers the address that produced sig over digest.
type SignerRecoverer interface {
	RecoverSigner(digest common.Hash, sig []byte) (common.Address, error)
}
