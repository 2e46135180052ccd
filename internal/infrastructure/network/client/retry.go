package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"portfolio_monitor/internal/domain/entity"
)

const maxBackoff = 10 * time.Second

// RetryPolicy rate limits and retries calls against one chain endpoint set.
type RetryPolicy struct {
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryPolicy builds a policy from a chain definition's request settings.
func NewRetryPolicy(def entity.ChainDefinition) *RetryPolicy {
	limit := rate.Inf
	if def.RateLimitPerSecond > 0 {
		limit = rate.Limit(def.RateLimitPerSecond)
	}
	burst := def.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RetryPolicy{
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: max(def.MaxRetries, 0),
		baseDelay:  def.RetryDelay,
	}
}

// Do runs op until it succeeds, fails permanently, or retries run out.
// Only rate limits and upstream outages are retried. A rate limit that outlasts
// every retry is reported as ErrUpstreamUnavailable.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return contextOr(ctx, err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		if attempt == p.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	if errors.Is(lastErr, entity.ErrRateLimited) {
		return fmt.Errorf("still rate limited after %d attempts: %v: %w", p.maxRetries+1, lastErr, entity.ErrUpstreamUnavailable)
	}
	return lastErr
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if p.baseDelay <= 0 {
		return 0
	}
	d := p.baseDelay << attempt
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func retryable(err error) bool {
	if errors.Is(err, entity.ErrInvalidAddress) {
		return false
	}
	return errors.Is(err, entity.ErrRateLimited) || errors.Is(err, entity.ErrUpstreamUnavailable)
}

// contextOr reports limiter waits that cannot finish before the deadline as a deadline error.
func contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%v: %w", err, context.DeadlineExceeded)
	}
	return err
}
