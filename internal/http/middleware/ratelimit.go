package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RateLimiter is satisfied by ratelimit.RedisRateLimiter.
type RateLimiter interface {
	AllowRequest(ctx context.Context, userID string, limit int, windowSeconds int) (bool, int, error)
}

// RateLimitMiddleware enforces a per-user request budget per minute.
// Must run after auth.IdentityMiddleware.
func RateLimitMiddleware(limiter RateLimiter, limitPerMin int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			userID, ok := auth.UserIDFromContext(ctx)
			if !ok {
				httperr.InternalError500(w, ctx, "user_id not found in context for rate limiting")
				return
			}

			allowed, remaining, err := limiter.AllowRequest(ctx, userID, limitPerMin, 60)
			if err != nil {
				logger.SetRootError(ctx, err)
				httperr.InternalError500(w, ctx, "rate limit check failed")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limitPerMin))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(60*time.Second).Unix(), 10))

			if !allowed {
				span := trace.SpanFromContext(ctx)
				span.AddEvent("rate_limit_exceeded")

				log.Warn(ctx, "rate limit exceeded",
					logger.Module("http"),
					logger.Action("rate_limit"),
					zap.Int("limit", limitPerMin),
				)

				w.Header().Set("Retry-After", "60")
				httperr.TooManyRequests429(w, ctx, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
