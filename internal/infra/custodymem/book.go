package custodymem

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

type TransferKind string

const (
	TransferFungible TransferKind = "fungible"
	TransferUnique   TransferKind = "unique"
)

// Transfer describes one movement applied by the book.
type Transfer struct {
	Kind   TransferKind
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
	ItemID *big.Int
}

// TransferHook runs after each staged transfer, the way token contracts call
// receiver hooks. Returning an error aborts the surrounding batch.
type TransferHook func(ctx context.Context, t Transfer) error

// Book is an in-memory token and collectible ledger. Operator is the account
// that performs transfers; moving assets out of any other account needs that
// account's approval.
type Book struct {
	mu       sync.RWMutex
	state    *state
	operator common.Address
	hook     TransferHook
}

func New(operator common.Address) *Book {
	return &Book{
		state:    newState(),
		operator: operator,
	}
}

func (b *Book) SetHook(hook TransferHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = hook
}

func (b *Book) Operator() common.Address {
	return b.operator
}

func (b *Book) Mint(token, to common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.setBalance(token, to, new(big.Int).Add(b.state.balance(token, to), amount))
}

// Approve sets the amount spender may move out of owner's balance.
func (b *Book) Approve(token, owner, spender common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

func (b *Book) MintItem(collection common.Address, itemID *big.Int, to common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := itemKey{collection, itemID.String()}
	if _, exists := b.state.owners[key]; exists {
		return errors.New("item already minted")
	}
	b.state.owners[key] = to
	return nil
}

func (b *Book) ApproveItem(collection common.Address, itemID *big.Int, owner, spender common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := itemKey{collection, itemID.String()}
	if b.state.owners[key] != owner {
		return domain.ErrNotItemHolder
	}
	b.state.approvals[key] = spender
	return nil
}

func (b *Book) SetApprovalForAll(collection, owner, operator common.Address, approved bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.operators[operatorKey{collection, owner, operator}] = approved
}

func (b *Book) BalanceOf(token, holder common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.state.balance(token, holder))
}

func (b *Book) Allowance(token, owner, spender common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.state.allowance(token, owner, spender))
}

func (b *Book) OwnerOf(collection common.Address, itemID *big.Int) (common.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	owner, ok := b.state.owners[itemKey{collection, itemID.String()}]
	return owner, ok
}

func (b *Book) TransferFungible(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	return b.Batch(ctx, func(tx domain.Custody) error {
		return tx.TransferFungible(ctx, token, from, to, amount)
	})
}

func (b *Book) TransferUnique(ctx context.Context, collection common.Address, itemID *big.Int, from, to common.Address) error {
	return b.Batch(ctx, func(tx domain.Custody) error {
		return tx.TransferUnique(ctx, collection, itemID, from, to)
	})
}

// Batch applies every transfer made through fn, or none of them.
func (b *Book) Batch(ctx context.Context, fn func(tx domain.Custody) error) error {
	pending, err := b.Prepare(ctx, fn)
	if err != nil {
		return err
	}
	pending.Commit()
	return nil
}

// Prepare stages transfers against a snapshot, then replays them on a copy
// of the live state under the write lock. The lock is held until the
// settlement is committed or discarded. No lock is held while fn runs, so
// hooks may call back into the book.
func (b *Book) Prepare(ctx context.Context, fn func(tx domain.Custody) error) (domain.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	staged := &batch{book: b, view: b.state.clone(), hook: b.hook}
	b.mu.RUnlock()

	if err := fn(staged); err != nil {
		return nil, err
	}

	b.mu.Lock()
	next := b.state
	if len(staged.applied) > 0 {
		next = b.state.clone()
		for _, t := range staged.applied {
			if err := apply(next, b.operator, t); err != nil {
				b.mu.Unlock()
				return nil, err
			}
		}
	}
	return &settlement{book: b, next: next}, nil
}

type settlement struct {
	book *Book
	next *state
	once sync.Once
}

func (s *settlement) Commit() {
	s.once.Do(func() {
		s.book.state = s.next
		s.book.mu.Unlock()
	})
}

func (s *settlement) Discard() {
	s.once.Do(s.book.mu.Unlock)
}

func apply(s *state, operator common.Address, t Transfer) error {
	switch t.Kind {
	case TransferFungible:
		return s.transferFungible(operator, t.Asset, t.From, t.To, t.Amount)
	case TransferUnique:
		return s.transferUnique(operator, t.Asset, t.ItemID, t.From, t.To)
	}
	return errors.New("unknown transfer kind")
}

type batch struct {
	book    *Book
	view    *state
	hook    TransferHook
	applied []Transfer
}

func (t *batch) TransferFungible(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return t.stage(ctx, Transfer{
		Kind:   TransferFungible,
		Asset:  token,
		From:   from,
		To:     to,
		Amount: new(big.Int).Set(amount),
	})
}

func (t *batch) TransferUnique(ctx context.Context, collection common.Address, itemID *big.Int, from, to common.Address) error {
	if itemID == nil {
		return domain.ErrNotItemHolder
	}
	return t.stage(ctx, Transfer{
		Kind:   TransferUnique,
		Asset:  collection,
		From:   from,
		To:     to,
		ItemID: new(big.Int).Set(itemID),
	})
}

// Prepare inside a batch joins it; the outer settlement decides.
func (t *batch) Prepare(ctx context.Context, fn func(tx domain.Custody) error) (domain.Settlement, error) {
	if err := fn(t); err != nil {
		return nil, err
	}
	return joined{}, nil
}

type joined struct{}

func (joined) Commit()  {}
func (joined) Discard() {}

func (t *batch) stage(ctx context.Context, tr Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := apply(t.view, t.book.operator, tr); err != nil {
		return err
	}
	t.applied = append(t.applied, tr)
	if t.hook != nil {
		return t.hook(ctx, tr)
	}
	return nil
}
