package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"lendeefi/internal/domain"
)

var ErrCapacity = errors.New("rate limiter capacity exceeded")

const defaultMaxKeys = 10000

type window struct {
	used  int
	until time.Time
}

// Memory is a fixed-window limiter for a single process. Keys whose window
// has closed are swept lazily once the table is full.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	maxKeys int
	windows map[string]*window
}

func NewMemory(maxKeys int, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &Memory{
		now:     now,
		maxKeys: maxKeys,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && !now.Before(w.until) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.sweep(now)
			if len(m.windows) >= m.maxKeys {
				return domain.RateLimitDecision{}, ErrCapacity
			}
		}
		w = &window{until: now.Add(span)}
		m.windows[key] = w
	}

	decision := domain.RateLimitDecision{Limit: limit, ResetAt: w.until}
	if w.used < limit {
		w.used++
		decision.Allowed = true
		decision.Remaining = limit - w.used
	}
	return decision, nil
}

func (m *Memory) sweep(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.until) {
			delete(m.windows, key)
		}
	}
}
