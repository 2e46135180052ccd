package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"portfolio_monitor/internal/domain/entity"
)

func testPolicy(maxRetries int) *RetryPolicy {
	return NewRetryPolicy(entity.ChainDefinition{
		RateLimitPerSecond: 1000,
		Burst:              10,
		MaxRetries:         maxRetries,
		RetryDelay:         time.Millisecond,
	})
}

func TestRetryPolicy_Do(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantCalls int32
		wantErr   error
	}{
		{
			name:      "success first try",
			wantCalls: 1,
		},
		{
			name:      "recovers from outage",
			failures:  []error{entity.ErrUpstreamUnavailable, entity.ErrRateLimited},
			wantCalls: 3,
		},
		{
			name:      "invalid address not retried",
			failures:  []error{fmt.Errorf("bad: %w", entity.ErrInvalidAddress)},
			wantCalls: 1,
			wantErr:   entity.ErrInvalidAddress,
		},
		{
			name:      "unknown errors not retried",
			failures:  []error{fmt.Errorf("decode")},
			wantCalls: 1,
		},
		{
			name:      "exhausted rate limit becomes unavailable",
			failures:  []error{entity.ErrRateLimited, entity.ErrRateLimited, entity.ErrRateLimited, entity.ErrRateLimited},
			wantCalls: 3,
			wantErr:   entity.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			err := testPolicy(2).Do(context.Background(), func(context.Context) error {
				n := calls.Add(1)
				if int(n) <= len(tt.failures) {
					return tt.failures[n-1]
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls.Load())
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, entity.ErrRateLimited, "rate limits never escape")
			case int(tt.wantCalls) <= len(tt.failures):
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	p := NewRetryPolicy(entity.ChainDefinition{RateLimitPerSecond: 1000, Burst: 1, MaxRetries: 5, RetryDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls.Add(1)
			return entity.ErrUpstreamUnavailable
		})
	}()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestRetryPolicy_BackoffCapped(t *testing.T) {
	p := NewRetryPolicy(entity.ChainDefinition{RetryDelay: time.Second})
	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, maxBackoff, p.backoff(6))
}
