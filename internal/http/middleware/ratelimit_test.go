package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"mebel-erp/internal/http/middleware"

	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	seen map[string]int
	err  error
}

func (c *countingLimiter) AllowRequest(_ context.Context, userID string, limit int, _ int) (bool, int, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.seen[userID]++
	remaining := limit - c.seen[userID]
	if remaining < 0 {
		remaining = 0
	}
	return c.seen[userID] <= limit, remaining, nil
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &countingLimiter{seen: map[string]int{}}
	h := middleware.RateLimitMiddleware(limiter, 2)(jsonHandler(`{}`))

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		rec := serve(h, "u-1")
		assert.Equal(t, want, rec.Code, "request %d", i)
		if want == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}

	assert.Equal(t, http.StatusOK, serve(h, "u-2").Code)
}

func TestRateLimitMiddleware_Errors(t *testing.T) {
	limiter := &countingLimiter{seen: map[string]int{}, err: errors.New("redis down")}
	h := middleware.RateLimitMiddleware(limiter, 2)(jsonHandler(`{}`))

	assert.Equal(t, http.StatusInternalServerError, serve(h, "u-1").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(h, "").Code)

}
