package usecase

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// claimLocks hands out one mutex per claim hash. Entries are dropped once no
// goroutine holds or waits for them.
type claimLocks struct {
	mu      sync.Mutex
	entries map[common.Hash]*claimLock
}

type claimLock struct {
	mu   sync.Mutex
	refs int
}

func (l *claimLocks) lock(claimHash common.Hash) func() {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[common.Hash]*claimLock)
	}
	entry, ok := l.entries[claimHash]
	if !ok {
		entry = &claimLock{}
		l.entries[claimHash] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, claimHash)
		}
		l.mu.Unlock()
	}
}

// inFlight describes the ledger operations already running on the calling
// path. Custody adapters may call back into the ledger with the context they
// were given; the marker lets those calls see what is in progress instead of
// waiting on locks their own caller holds. A re-entrant call on the claim in
// flight reports that claim's target state; any other re-entrant mutation
// fails with ErrReentrantCall without taking a lock.
type inFlight struct {
	claims       map[common.Hash]struct{}
	deactivating bool
}

type inFlightKey struct{}

func inFlightFrom(ctx context.Context) inFlight {
	if f, ok := ctx.Value(inFlightKey{}).(inFlight); ok {
		return f
	}
	return inFlight{}
}

func (f inFlight) active() bool {
	return len(f.claims) > 0 || f.deactivating
}

func (f inFlight) hasClaim(claimHash common.Hash) bool {
	_, ok := f.claims[claimHash]
	return ok
}

func (f inFlight) withClaim(claimHash common.Hash) inFlight {
	claims := make(map[common.Hash]struct{}, len(f.claims)+1)
	for h := range f.claims {
		claims[h] = struct{}{}
	}
	claims[claimHash] = struct{}{}
	f.claims = claims
	return f
}

func (f inFlight) into(ctx context.Context) context.Context {
	return context.WithValue(ctx, inFlightKey{}, f)
}
