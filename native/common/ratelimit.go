package common

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit configures a token bucket applied per caller. A zero PerSecond
// disables limiting.
type RateLimit struct {
	PerSecond float64 `json:"per_second" toml:"PerSecond" yaml:"per_second"`
	Burst     int     `json:"burst" toml:"Burst" yaml:"burst"`
}

// Enabled reports whether the limit throttles callers.
func (l RateLimit) Enabled() bool {
	return l.PerSecond > 0
}

// KeyedLimiter maintains one token bucket per key. Callers supply the
// timestamp so the limiter follows the protocol clock rather than wall time.
type KeyedLimiter struct {
	mu       sync.Mutex
	limit    RateLimit
	limiters map[string]*rate.Limiter
}

// NewKeyedLimiter constructs a limiter for the supplied configuration.
func NewKeyedLimiter(limit RateLimit) *KeyedLimiter {
	return &KeyedLimiter{limit: limit, limiters: make(map[string]*rate.Limiter)}
}

// SetLimit replaces the configuration and drops existing buckets.
func (k *KeyedLimiter) SetLimit(limit RateLimit) {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.limit = limit
	k.limiters = make(map[string]*rate.Limiter)
}

// Limit returns the active configuration.
func (k *KeyedLimiter) Limit() RateLimit {
	if k == nil {
		return RateLimit{}
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.limit
}

// Allow consumes a token for key at now. It returns ErrRateLimited when the
// bucket is empty.
func (k *KeyedLimiter) Allow(key string, now time.Time) error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.limit.Enabled() {
		return nil
	}
	limiter, ok := k.limiters[key]
	if !ok {
		burst := k.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(k.limit.PerSecond), burst)
		k.limiters[key] = limiter
	}
	if !limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}
