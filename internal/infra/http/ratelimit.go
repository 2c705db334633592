package http

import (
	"net/http"
	"strconv"
	"time"

	"lendeefi/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	routeClaimsHash     = "claims:hash"
	routeLoansCreate    = "loans:create"
	routeLoansRepay     = "loans:repay"
	routeLoansDefault   = "loans:default"
	routeRootDeactivate = "roots:deactivate"
)

func (s *Server) enforceRateLimit(c *gin.Context, routeID string, caller *common.Address) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := domain.RateLimitKey(routeID, caller)
	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", "route", routeID, "err", err)
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if decision.ResetAt.IsZero() {
		return
	}
	c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	if !decision.Allowed {
		retry := int64(time.Until(decision.ResetAt).Seconds())
		if retry < 0 {
			retry = 0
		}
		c.Header("Retry-After", strconv.FormatInt(retry, 10))
	}
}
