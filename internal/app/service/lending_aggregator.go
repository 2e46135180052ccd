package service

import (
	"sort"

	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
)

const defaultLiquidationThreshold = 0.8

// LendingAggregator folds priced collateral and debt tokens of one protocol into a LendingPosition.
type LendingAggregator struct {
	cfg configloader.LendingConfig
}

// NewLendingAggregator creates a new LendingAggregator.
func NewLendingAggregator(cfg configloader.LendingConfig) *LendingAggregator {
	if cfg.DefaultLiquidationThreshold <= 0 || cfg.DefaultLiquidationThreshold > 1 {
		cfg.DefaultLiquidationThreshold = defaultLiquidationThreshold
	}
	return &LendingAggregator{cfg: cfg}
}

// ThresholdFor returns the configured liquidation threshold of a protocol.
func (a *LendingAggregator) ThresholdFor(protocol string) float64 {
	v := a.cfg.ThresholdFor(protocol)
	if v <= 0 || v > 1 {
		return a.cfg.DefaultLiquidationThreshold
	}
	return v
}

// Aggregate expects tokens already priced. Tokens without a USD value add
// nothing to the totals and are listed in UnpricedSymbols.
func (a *LendingAggregator) Aggregate(protocol string, collateral, debt []entity.TokenBalance) entity.LendingPosition {
	pos := entity.LendingPosition{
		Protocol:             protocol,
		Supplied:             nonNil(collateral),
		Borrowed:             nonNil(debt),
		LiquidationThreshold: a.ThresholdFor(protocol),
	}

	unpriced := make(map[string]struct{})
	for _, t := range collateral {
		if t.USDValue == nil {
			unpriced[t.Symbol] = struct{}{}
			continue
		}
		pos.TotalSuppliedUSD += *t.USDValue
	}
	for _, t := range debt {
		if t.USDValue == nil {
			unpriced[t.Symbol] = struct{}{}
			continue
		}
		pos.TotalBorrowedUSD += *t.USDValue
	}

	pos.NetWorthUSD = pos.TotalSuppliedUSD - pos.TotalBorrowedUSD
	if pos.TotalBorrowedUSD > 0 {
		hf := pos.TotalSuppliedUSD * pos.LiquidationThreshold / pos.TotalBorrowedUSD
		pos.HealthFactor = &hf
	}

	if len(unpriced) > 0 {
		pos.UnpricedSymbols = make([]string, 0, len(unpriced))
		for s := range unpriced {
			pos.UnpricedSymbols = append(pos.UnpricedSymbols, s)
		}
		sort.Strings(pos.UnpricedSymbols)
	}
	return pos
}

func nonNil(tokens []entity.TokenBalance) []entity.TokenBalance {
	if tokens == nil {
		return []entity.TokenBalance{}
	}
	return tokens
}
