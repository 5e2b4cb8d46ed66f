package settlement

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"marquee/internal/orders/txn"
)

// RetryPolicy controls retry behavior for idempotent outbound calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      func(time.Duration) time.Duration
	Sleep       func(context.Context, time.Duration) error
	ShouldRetry func(error) bool
}

// Do executes fn with retries according to the policy.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = retryable
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if attempt == attempts || !shouldRetry(err) {
			return err
		}

		delay := p.BaseDelay
		if delay > 0 {
			delay = delay << (attempt - 1)
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		delay = jitter(delay)
		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// retryable rejects errors that another attempt cannot fix: cancellation, an
// open breaker and vendor replies that reject the request itself.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var (
		cardErr *CardGatewayError
		seatErr *SeatVendorError
		accErr  *AccountVendorError
		discErr *DiscountVendorError
	)
	switch {
	case errors.As(err, &cardErr):
		return cardErr.StatusCode >= 500
	case errors.As(err, &seatErr):
		return seatErr.StatusCode >= 500
	case errors.As(err, &accErr):
		return accErr.StatusCode >= 500 || accErr.StatusCode == 429
	case errors.As(err, &discErr):
		return discErr.StatusCode >= 500
	}
	return !errors.Is(err, txn.ErrArgument) && !errors.Is(err, txn.ErrNotFound)
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
	Now          func() time.Time
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreaker stops calls to a back-end after repeated failures and lets a
// single probe through once ResetTimeout has elapsed.
type CircuitBreaker struct {
	mu         sync.Mutex
	maxFails   int
	resetAfter time.Duration
	now        func() time.Time

	state          circuitState
	failures       int
	openedAt       time.Time
	halfOpenFlight bool
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	resetAfter := cfg.ResetTimeout
	if resetAfter <= 0 {
		resetAfter = 2 * time.Second
	}
	return &CircuitBreaker{
		maxFails:   max(cfg.MaxFailures, 1),
		resetAfter: resetAfter,
		now:        now,
		state:      circuitClosed,
	}
}

// Execute runs fn while enforcing breaker state. Vendor replies rejecting the
// request do not count as failures of the back-end.
func (c *CircuitBreaker) Execute(fn func() error) error {
	if c == nil {
		return fn()
	}

	now := c.now()

	c.mu.Lock()
	switch c.state {
	case circuitOpen:
		if now.Sub(c.openedAt) < c.resetAfter {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
		c.state = circuitHalfOpen
		c.halfOpenFlight = true
	case circuitHalfOpen:
		if c.halfOpenFlight {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
		c.halfOpenFlight = true
	}
	c.mu.Unlock()

	err := fn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == circuitHalfOpen {
		c.halfOpenFlight = false
	}

	if err == nil || !retryable(err) {
		c.state = circuitClosed
		c.failures = 0
		return err
	}

	if c.state == circuitHalfOpen {
		c.state = circuitOpen
		c.openedAt = now
		c.failures = 0
		return err
	}

	c.failures++
	if c.failures >= c.maxFails {
		c.state = circuitOpen
		c.openedAt = now
	}
	return err
}

// RateLimiter is a token-bucket limiter.
type RateLimiter struct {
	mu    sync.Mutex
	rate  time.Duration
	burst int
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	// onWait observes every sleep caused by an empty bucket.
	onWait func(time.Duration)

	tokens int
	last   time.Time
}

// NewRateLimiter constructs a limiter that refills one token every rate.
func NewRateLimiter(rate time.Duration, burst int) *RateLimiter {
	limiter := &RateLimiter{
		rate:  rate,
		burst: burst,
		now:   time.Now,
		sleep: sleepWithContext,
	}
	limiter.tokens = burst
	limiter.last = limiter.now()
	return limiter
}

// OnWait registers fn to observe waits and returns r.
func (r *RateLimiter) OnWait(fn func(time.Duration)) *RateLimiter {
	r.onWait = fn
	return r
}

// Wait blocks until a token is available or the context ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.mu.Lock()
		now := r.now()
		r.refill(now)
		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		wait := r.rate - now.Sub(r.last)
		r.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if r.onWait != nil {
			r.onWait(wait)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.last)
	if elapsed < r.rate {
		return
	}
	add := int(elapsed / r.rate)
	r.tokens = min(r.tokens+add, r.burst)
	r.last = r.last.Add(time.Duration(add) * r.rate)
}

// Guard applies rate limiting and circuit breaking to every call of one
// back-end, and retries only calls marked idempotent.
type Guard struct {
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   RetryPolicy
}

func NewGuard(limiter *RateLimiter, breaker *CircuitBreaker, retry RetryPolicy) *Guard {
	return &Guard{limiter: limiter, breaker: breaker, retry: retry}
}

// NewGuardFromConfig builds a guard with its own limiter and breaker.
func NewGuardFromConfig(cfg ReliabilityConfig) *Guard {
	return NewGuard(
		NewRateLimiter(cfg.RateLimitInterval, cfg.RateLimitBurst),
		NewCircuitBreaker(CircuitBreakerConfig{
			MaxFailures:  cfg.BreakerMaxFailures,
			ResetTimeout: cfg.BreakerResetTimeout,
		}),
		RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
	)
}

// Call runs fn once.
func (g *Guard) Call(ctx context.Context, fn func() error) error {
	if g == nil {
		return fn()
	}
	return g.attempt(ctx, fn)
}

// Idempotent runs fn under the retry policy.
func (g *Guard) Idempotent(ctx context.Context, fn func() error) error {
	if g == nil {
		return fn()
	}
	return g.retry.Do(ctx, func() error { return g.attempt(ctx, fn) })
}

func (g *Guard) attempt(ctx context.Context, fn func() error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return g.breaker.Execute(fn)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
