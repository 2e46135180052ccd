package port

import (
	"context"

	"portfolio_monitor/internal/domain/entity"
)

// TokenProvider supplies per-chain token lists and registry entries.
type TokenProvider interface {
	// GetTokens returns the token list for a chain identifier.
	GetTokens(chain string) []entity.TokenInfo
	// GetRegistry returns registry entries loaded from disk, in addition to built-ins.
	GetRegistry() []entity.RegistryEntry
}

// PriceSource resolves symbols to USD prices. Unresolved symbols are
// omitted from the result, never set to zero.
type PriceSource interface {
	Resolve(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PriceFeed is the upstream collaborator behind a PriceSource.
type PriceFeed interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}
