package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/pkg/metrics"
)

// stablecoinSymbols are the unit of account and always price at exactly 1.0.
var stablecoinSymbols = map[string]struct{}{
	"USDT": {},
	"USDC": {},
	"DAI":  {},
	"BUSD": {},
	"TUSD": {},
}

// IsStablecoin reports whether symbol is priced at 1.0 without an upstream call.
func IsStablecoin(symbol string) bool {
	_, ok := stablecoinSymbols[strings.ToUpper(symbol)]
	return ok
}

type cachedPrice struct {
	price    float64
	resolved bool
}

// PriceService implements port.PriceSource over a PriceFeed with a staleness-bounded cache.
type PriceService struct {
	feed   port.PriceFeed
	cache  *cache.Cache
	logger port.Logger
}

// NewPriceService creates a new PriceService. staleness is how long an upstream answer,
// including "no price", is reused.
func NewPriceService(feed port.PriceFeed, staleness time.Duration, l port.Logger) *PriceService {
	if staleness <= 0 {
		staleness = 5 * time.Minute
	}
	return &PriceService{
		feed:   feed,
		cache:  cache.New(staleness, 2*staleness),
		logger: l,
	}
}

// Resolve returns USD prices keyed by upper-case symbol. Unresolved symbols are absent.
// On upstream failure the partial map is returned together with an error wrapping
// entity.ErrUpstreamUnavailable.
func (s *PriceService) Resolve(ctx context.Context, symbols []string) (map[string]float64, error) {
	result := make(map[string]float64, len(symbols))
	var missing []string
	seen := make(map[string]struct{}, len(symbols))

	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		if IsStablecoin(symbol) {
			result[symbol] = 1.0
			continue
		}
		if item, found := s.cache.Get(symbol); found {
			if cp := item.(cachedPrice); cp.resolved {
				result[symbol] = cp.price
			}
			continue
		}
		missing = append(missing, symbol)
	}

	if len(missing) == 0 {
		metrics.PriceRequests.WithLabelValues("cached").Inc()
		return result, nil
	}
	sort.Strings(missing)

	s.logger.Debug("Fetching prices from upstream", "symbols", missing)
	fetched, err := s.feed.FetchPrices(ctx, missing)
	if err != nil {
		metrics.PriceRequests.WithLabelValues("error").Inc()
	} else {
		metrics.PriceRequests.WithLabelValues("success").Inc()
	}

	normalized := make(map[string]float64, len(fetched))
	for k, v := range fetched {
		normalized[strings.ToUpper(k)] = v
	}

	var unresolved []string
	for _, symbol := range missing {
		price, ok := normalized[symbol]
		if !ok || price <= 0 {
			// After a feed error a missing symbol may just be the failed provider's.
			if err == nil {
				s.cache.SetDefault(symbol, cachedPrice{})
			}
			unresolved = append(unresolved, symbol)
			continue
		}
		s.cache.SetDefault(symbol, cachedPrice{price: price, resolved: true})
		result[symbol] = price
	}

	if err != nil {
		s.logger.Warn("Price feed failed, continuing with partial prices",
			"symbols", len(missing), "resolved", len(missing)-len(unresolved), "error", err)
		return result, fmt.Errorf("resolve %d symbols: %w: %v", len(missing), entity.ErrUpstreamUnavailable, err)
	}
	if len(unresolved) > 0 {
		s.logger.Info("No price found for symbols", "symbols", unresolved)
	}
	return result, nil
}

// Invalidate drops every cached price.
func (s *PriceService) Invalidate() {
	s.cache.Flush()
}
