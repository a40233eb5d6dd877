package util

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/drallgood/ebook-reader/internal/logger"
)

var (
	// DefaultRate is the default minimum time between requests
	DefaultRate = 200 * time.Millisecond
	// DefaultBurst is the default burst size
	DefaultBurst = 5
	// DefaultMaxRate caps the delay reached by repeated OnRateLimit calls
	DefaultMaxRate = 5 * time.Second
	// DefaultRecoverAfter is the number of consecutive successful responses
	// after which a slowed down limiter returns to its configured rate
	DefaultRecoverAfter = 20
)

// RateLimiter is a token bucket that spaces outgoing API calls.
// It only delays requests; it never retries them.
type RateLimiter struct {
	mu           sync.Mutex
	last         time.Time
	rate         time.Duration
	minRate      time.Duration
	maxRate      time.Duration
	tokens       int
	maxTokens    int
	lastRateDrop time.Time
	holdUntil    time.Time
	successes    int
	logger       *logger.Logger
}

// NewRateLimiter creates a limiter allowing burst requests at once and then
// one request per rate.
func NewRateLimiter(rate time.Duration, burst int, log *logger.Logger) *RateLimiter {
	if rate <= 0 {
		rate = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if log == nil {
		log = logger.Component("rate_limiter")
	}

	now := time.Now()
	maxRate := DefaultMaxRate
	if rate > maxRate {
		maxRate = rate
	}
	return &RateLimiter{
		last:         now,
		rate:         rate,
		minRate:      rate,
		maxRate:      maxRate,
		tokens:       burst,
		maxTokens:    burst,
		lastRateDrop: now,
		logger:       log,
	}
}

// Wait blocks until a token is available or ctx is done. After a 429 it
// also waits out the delay returned by OnRateLimit.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()

	if hold := time.Until(r.holdUntil); hold > 0 {
		r.mu.Unlock()
		if err := sleep(ctx, hold); err != nil {
			return err
		}
		r.mu.Lock()
	}

	now := time.Now()
	if newTokens := int(now.Sub(r.last) / r.rate); newTokens > 0 {
		r.tokens += newTokens
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.last = now
	}

	if r.tokens > 0 {
		r.tokens--
		r.mu.Unlock()
		return nil
	}

	// up to 20% jitter
	wait := r.rate + time.Duration(rand.Float64()*0.2*float64(r.rate))
	next := r.last.Add(wait)
	r.mu.Unlock()

	if err := sleep(ctx, time.Until(next)); err != nil {
		return err
	}
	r.mu.Lock()
	r.last = next
	r.tokens = 0
	r.mu.Unlock()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OnRateLimit slows the limiter down after the server answered 429 and
// returns the delay the next Wait will hold requests for.
func (r *RateLimiter) OnRateLimit(retryAfter time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastRateDrop) < 5*time.Minute {
		r.rate = time.Duration(1.5 * float64(r.rate))
	} else {
		r.rate = time.Duration(1.2 * float64(r.rate))
	}
	if r.rate > r.maxRate {
		r.rate = r.maxRate
	}
	r.lastRateDrop = now

	r.logger.Warn("Rate limited, increasing delay between requests", map[string]interface{}{
		"new_rate":    r.rate.String(),
		"retry_after": retryAfter.String(),
	})

	delay := r.rate
	if retryAfter > delay {
		delay = retryAfter
	}
	r.holdUntil = now.Add(delay)
	r.tokens = 0
	r.successes = 0
	return delay
}

// OnSuccess records a successful response. A limiter slowed down by
// OnRateLimit returns to its configured rate after DefaultRecoverAfter
// successes in a row.
func (r *RateLimiter) OnSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rate <= r.minRate {
		r.successes = 0
		return
	}
	r.successes++
	if r.successes < DefaultRecoverAfter {
		return
	}
	r.logger.Info("Rate limit recovered, restoring configured delay", map[string]interface{}{
		"rate": r.minRate.String(),
	})
	r.rate = r.minRate
	r.successes = 0
}

// ResetRate restores the configured rate
func (r *RateLimiter) ResetRate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rate = r.minRate
	r.successes = 0
	r.holdUntil = time.Time{}
	r.lastRateDrop = time.Now()
}

// GetRate returns the current delay between requests
func (r *RateLimiter) GetRate() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}
