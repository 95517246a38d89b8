package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/resilience"
)

// Coordinator routes extraction between the fast reader path and the slow
// browser path. The fast path runs first; the slow path gets exactly one
// attempt, and only when the fast failure is classified recoverable.
// Business outcomes (unavailable, restricted) are authoritative from either
// path and never trigger a fallback.
type Coordinator struct {
	fast    Engine
	slow    Engine
	breaker *resilience.CircuitBreaker
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithBreaker guards the fast path with a circuit breaker. When the reader
// upstream trips, requests skip straight to the browser path instead of
// paying for a doomed fetch.
func WithBreaker(cb *resilience.CircuitBreaker) CoordinatorOption {
	return func(c *Coordinator) {
		c.breaker = cb
	}
}

// NewCoordinator creates a Coordinator over the two engines. slow may be nil
// when no browser is configured; recoverable fast failures then surface
// directly.
func NewCoordinator(fast, slow Engine, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{fast: fast, slow: slow}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract runs the two-path policy for one URL. forcePrimary skips the fast
// path entirely and goes straight to the browser.
func (c *Coordinator) Extract(ctx context.Context, url string, forcePrimary bool) (*model.ExtractedJob, error) {
	log := zap.L().With(zap.String("url", url))

	if forcePrimary {
		if c.slow == nil {
			return nil, Technical(KindInternal, "browser path forced but not configured", nil)
		}
		log.Info("extraction forced to browser path")
		return c.slow.Extract(ctx, url)
	}

	job, err := c.extractFast(ctx, url)
	if err == nil {
		return job, nil
	}
	if IsBusinessOutcome(err) {
		return nil, err
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		if c.slow == nil {
			return nil, Technical(KindInternal, "reader path unavailable", err)
		}
		log.Warn("reader circuit open, routing to browser path")
		return c.slow.Extract(ctx, url)
	}
	if c.slow == nil || !Recoverable(err) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	log.Warn("fast extraction failed, falling back to browser",
		zap.String("engine", c.fast.Name()),
		zap.Error(err),
	)
	return c.slow.Extract(ctx, url)
}

// extractFast runs the fast engine, through the breaker when one is set.
// Business outcomes never count as breaker failures.
func (c *Coordinator) extractFast(ctx context.Context, url string) (*model.ExtractedJob, error) {
	if c.breaker == nil {
		return c.fast.Extract(ctx, url)
	}
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*model.ExtractedJob, error) {
		return c.fast.Extract(ctx, url)
	})
}

// NewReaderBreaker builds the breaker used to guard the fast path.
func NewReaderBreaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     2 * time.Minute,
		ShouldTrip: func(err error) bool {
			return !IsBusinessOutcome(err)
		},
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("reader circuit state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}
