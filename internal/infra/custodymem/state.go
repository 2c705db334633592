package custodymem

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendeefi/internal/domain"
)

var ErrInvalidAmount = errors.New("invalid transfer amount")

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

type itemKey struct {
	collection common.Address
	id         string
}

type operatorKey struct {
	collection common.Address
	owner      common.Address
	operator   common.Address
}

type state struct {
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	owners     map[itemKey]common.Address
	approvals  map[itemKey]common.Address
	operators  map[operatorKey]bool
}

func newState() *state {
	return &state{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		owners:     make(map[itemKey]common.Address),
		approvals:  make(map[itemKey]common.Address),
		operators:  make(map[operatorKey]bool),
	}
}

func (s *state) clone() *state {
	out := newState()
	for token, holders := range s.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for holder, amount := range holders {
			copied[holder] = new(big.Int).Set(amount)
		}
		out.balances[token] = copied
	}
	for k, v := range s.allowances {
		out.allowances[k] = new(big.Int).Set(v)
	}
	for k, v := range s.owners {
		out.owners[k] = v
	}
	for k, v := range s.approvals {
		out.approvals[k] = v
	}
	for k, v := range s.operators {
		out.operators[k] = v
	}
	return out
}

func (s *state) balance(token, holder common.Address) *big.Int {
	if amount, ok := s.balances[token][holder]; ok {
		return amount
	}
	return new(big.Int)
}

func (s *state) setBalance(token, holder common.Address, amount *big.Int) {
	holders, ok := s.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		s.balances[token] = holders
	}
	holders[holder] = amount
}

func (s *state) allowance(token, owner, spender common.Address) *big.Int {
	if amount, ok := s.allowances[allowanceKey{token, owner, spender}]; ok {
		return amount
	}
	return new(big.Int)
}

// transferFungible moves amount as spender. A spender moving its own
// balance needs no allowance.
func (s *state) transferFungible(spender, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if from != spender {
		allowed := s.allowance(token, from, spender)
		if allowed.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}
		s.allowances[allowanceKey{token, from, spender}] = new(big.Int).Sub(allowed, amount)
	}
	fromBalance := s.balance(token, from)
	if fromBalance.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	s.setBalance(token, from, new(big.Int).Sub(fromBalance, amount))
	s.setBalance(token, to, new(big.Int).Add(s.balance(token, to), amount))
	return nil
}

func (s *state) transferUnique(spender, collection common.Address, itemID *big.Int, from, to common.Address) error {
	if itemID == nil {
		return domain.ErrNotItemHolder
	}
	key := itemKey{collection, itemID.String()}
	holder, ok := s.owners[key]
	if !ok || holder != from {
		return domain.ErrNotItemHolder
	}
	if from != spender && s.approvals[key] != spender && !s.operators[operatorKey{collection, from, spender}] {
		return domain.ErrNotApproved
	}
	delete(s.approvals, key)
	s.owners[key] = to
	return nil
}
