package api

import (
	"net"
	"net/http"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/treasury-tracker/internal/errors"
)

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	limiters *xsync.Map[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter. rps <= 0 disables limiting.
func NewRateLimiter(rps, burst int) *RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: xsync.NewMap[string, *rate.Limiter](),
		limit:    limit,
		burst:    burst,
	}
}

// getLimiter returns the limiter for a client, creating it on first use
func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	limiter, _ := rl.limiters.Compute(client, func(old *rate.Limiter, loaded bool) (*rate.Limiter, xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		return rate.NewLimiter(rl.limit, rl.burst), xsync.UpdateOp
	})
	return limiter
}

// clientKey identifies the caller by remote IP
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getLimiter(clientKey(r))
			if !limiter.Allow() {
				respondServiceError(w, apperrors.NewRateLimitError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
