package port

import (
	"context"

	"portfolio_monitor/internal/domain/entity"
)

// ChainAdapter fetches native and token holdings for one chain.
// Implementations own retry and rate limiting; RateLimited never escapes Fetch.
type ChainAdapter interface {
	// Fetch fails with entity.ErrUpstreamUnavailable or entity.ErrInvalidAddress.
	Fetch(ctx context.Context, address string) (entity.ChainBalances, error)

	// Definition returns the chain definition associated with this adapter.
	Definition() entity.ChainDefinition
}

// ChainDefinitionProvider resolves chain identifiers to definitions.
type ChainDefinitionProvider interface {
	GetAllChainDefinitions() []entity.ChainDefinition
	GetChainDefinition(identifier string) (entity.ChainDefinition, bool)
}

// ChainAdapterProvider hands out one cached adapter per chain.
type ChainAdapterProvider interface {
	// GetAdapter fails with entity.ErrUnsupportedChain for unknown chains.
	GetAdapter(chain string) (ChainAdapter, error)
}
