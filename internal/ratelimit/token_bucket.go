// Package ratelimit throttles calls to the ad server API.
//
// The API enforces a per-network quota and answers bursts with
// QuotaError.EXCEEDED_QUOTA faults. A token bucket lets a run issue short
// bursts up to the bucket capacity while holding the sustained rate at
// the refill rate.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a thread-safe token bucket.
//
//	bucket := NewTokenBucket(8, 4) // burst of 8, 4 calls/second
//	if err := bucket.Wait(ctx); err != nil {
//	    return err
//	}
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
	waitCount  int64 // calls that had to wait for a token
	totalCount int64
	now        func() time.Time
}

// NewTokenBucket creates a full bucket holding capacity tokens and refilling
// at refillRate tokens per second.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// refill must be called with mu held.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed.Seconds()*tb.refillRate)
	tb.lastRefill = now
}

// Allow consumes one token if available and reports whether it did.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.totalCount++
	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	tb.waitCount++
	return false
}

// reserve takes a token, possibly driving the balance negative, and returns
// how long the caller must wait before its token is due.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.totalCount++
	tb.refill()
	tb.tokens--
	if tb.tokens >= 0 {
		return 0
	}
	tb.waitCount++
	if tb.refillRate <= 0 {
		return -1
	}
	return time.Duration(-tb.tokens / tb.refillRate * float64(time.Second))
}

// cancel returns a reserved token whose wait was abandoned.
func (tb *TokenBucket) cancel() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = min(float64(tb.capacity), tb.tokens+1)
}

// Wait blocks until a token is available or ctx is done. It reports whether
// the call was delayed.
func (tb *TokenBucket) Wait(ctx context.Context) (delayed bool, err error) {
	d := tb.reserve()
	if d == 0 {
		return false, nil
	}
	if d < 0 {
		<-ctx.Done()
		tb.cancel()
		return true, ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		tb.cancel()
		return true, ctx.Err()
	}
}

// Stats returns the number of calls that found the bucket empty and the
// total number of calls.
func (tb *TokenBucket) Stats() (waits, total int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.waitCount, tb.totalCount
}
