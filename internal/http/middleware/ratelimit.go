package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/princekumarofficial/plate-console/internal/metrics"
	"github.com/princekumarofficial/plate-console/internal/ratelimit"
	"github.com/princekumarofficial/plate-console/internal/utils/response"
)

// ActionSubmit is the rate-limited action for detection submissions
const ActionSubmit = "submit"

// Limiter is satisfied by *ratelimit.TokenBucket
type Limiter interface {
	Allow(ctx context.Context, subject, action string) (ratelimit.Decision, error)
}

type RateLimitConfig struct {
	limiters map[string]Limiter
	denied   map[string]http.Handler
	metrics  *metrics.Metrics
}

func NewRateLimitConfig(m *metrics.Metrics) *RateLimitConfig {
	return &RateLimitConfig{
		limiters: make(map[string]Limiter),
		denied:   make(map[string]http.Handler),
		metrics:  m,
	}
}

// Register sets the limiter used for an action
func (rlc *RateLimitConfig) Register(action string, limiter Limiter) {
	rlc.limiters[action] = limiter
}

// OnLimited replaces the JSON 429 for an action with h, e.g. to send a
// browser form post back to its page.
func (rlc *RateLimitConfig) OnLimited(action string, h http.Handler) {
	rlc.denied[action] = h
}

func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Session middleware must run first
			sessionID, ok := GetSessionIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
					errors.New("session required")))
				return
			}

			limiter, exists := rlc.limiters[action]
			if !exists {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(r.Context(), sessionID, action)
			if err != nil {
				slog.Error("Rate limit check failed", slog.String("error", err.Error()))
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
					fmt.Errorf("rate limit check failed: %w", err)))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", "60")

			if !decision.Allowed {
				rlc.metrics.ObserveRateLimited()
				if denied, ok := rlc.denied[action]; ok {
					denied.ServeHTTP(w, r)
					return
				}
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("rate limit exceeded")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitedHandler wraps a handler with rate limiting for a specific action
func (rlc *RateLimitConfig) RateLimitedHandler(action string, handler http.HandlerFunc) http.Handler {
	return rlc.RateLimitMiddleware(action)(http.HandlerFunc(handler))
}
