package domain

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}

// RateLimitKey scopes a limit to one route and, when known, one caller.
func RateLimitKey(route string, caller *common.Address) string {
	var b strings.Builder
	b.WriteString("lendeefi:rl:")
	b.WriteString(route)
	if caller != nil {
		b.WriteString(":")
		b.WriteString(strings.ToLower(caller.Hex()))
	}
	return b.String()
}
