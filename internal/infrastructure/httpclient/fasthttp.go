package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"portfolio_monitor/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTimeout = 10 * time.Second

// Do executes req honouring the context deadline, falling back to timeout.
// Transport failures and context expiry are returned as-is for the caller to classify.
func Do(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > timeout {
		deadline = time.Now().Add(timeout)
	}
	err := client.DoDeadline(req, resp, deadline)
	if err != nil && errors.Is(err, fasthttp.ErrTimeout) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// StatusError maps a non-2xx status to a domain sentinel.
func StatusError(status int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	switch {
	case status == fasthttp.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", status, entity.ErrRateLimited)
	case status == fasthttp.StatusBadRequest:
		return fmt.Errorf("status %d: %s: %w", status, snippet, entity.ErrInvalidAddress)
	default:
		return fmt.Errorf("status %d: %s: %w", status, snippet, entity.ErrUpstreamUnavailable)
	}
}

// TransportError wraps a failed round trip, keeping context errors recognisable.
func TransportError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("request to %s: %w", url, ctxErr)
	}
	return fmt.Errorf("request to %s: %v: %w", url, err, entity.ErrUpstreamUnavailable)
}
