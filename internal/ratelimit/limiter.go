package ratelimit

import (
	"context"

	"github.com/patrickwarner/openwrap-setup/internal/observability"
)

// Config holds the throttle settings.
type Config struct {
	Capacity   int     // burst allowance
	RefillRate float64 // sustained calls per second
	Enabled    bool
}

// Limiter throttles ad server API calls for one network and reports waits
// through the metrics registry.
type Limiter struct {
	bucket  *TokenBucket
	config  Config
	metrics observability.MetricsRegistry
}

// NewLimiter returns a Limiter. A nil metrics registry records nothing. A
// non-positive refill rate would never release a waiting call, so it leaves
// throttling off.
func NewLimiter(config Config, metrics observability.MetricsRegistry) *Limiter {
	if config.RefillRate <= 0 {
		config.Enabled = false
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Limiter{
		bucket:  NewTokenBucket(config.Capacity, config.RefillRate),
		config:  config,
		metrics: metrics,
	}
}

// Wait blocks until a call to service may proceed. It returns immediately
// when throttling is disabled.
func (l *Limiter) Wait(ctx context.Context, service string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	delayed, err := l.bucket.Wait(ctx)
	if delayed {
		l.metrics.IncrementThrottled(service)
	}
	return err
}

// Stats returns the bucket statistics.
func (l *Limiter) Stats() (waits, total int64) {
	return l.bucket.Stats()
}
