// ratelimit.go implements token-bucket rate limiting for the Hyperliquid API.
//
// Hyperliquid weighs REST requests against a per-minute budget. Two buckets
// are maintained with continuous refill so bursts smooth out instead of
// tripping the hard limit:
//   - Info:     reads against /info (state, meta, mids, orders)
//   - Exchange: writes against /exchange (orders, cancels)
package venue

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a token-bucket rate limiter with continuous refill.
// Callers block in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64   // current available tokens (fractional allowed)
	capacity float64   // maximum burst size
	rate     float64   // tokens refilled per second
	lastTime time.Time // last time tokens were calculated
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// retry
		}
	}
}

// RateLimiter groups token buckets by Hyperliquid endpoint category.
// Each call must Wait() on the appropriate bucket before making the HTTP
// request.
type RateLimiter struct {
	Info     *TokenBucket // POST /info — reads
	Exchange *TokenBucket // POST /exchange — orders and cancels
}

// NewRateLimiter creates rate limiters tuned well below Hyperliquid's
// published per-minute weight budget.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Info:     NewTokenBucket(60, 10),
		Exchange: NewTokenBucket(30, 5),
	}
}
