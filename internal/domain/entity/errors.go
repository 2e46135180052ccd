package entity

import (
	"context"
	"errors"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrPersistenceFailure  = errors.New("persistence failure")
	ErrNotYetAvailable     = errors.New("snapshot not yet available")
	ErrNotFound            = errors.New("not found")
)

// ErrorKind maps err to a stable code for PortfolioError and metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnsupportedChain):
		return "unsupported_chain"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "unknown"
	}
}
