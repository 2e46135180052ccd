package service

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
)

func balance(symbol string, units int64, decimals uint8, category entity.TokenCategory) entity.TokenBalance {
	raw := new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return entity.TokenBalance{Symbol: symbol, RawAmount: raw, Decimals: decimals, Category: category}
}

func TestLendingAggregator_HealthFactorScenario(t *testing.T) {
	agg := NewLendingAggregator(configloader.LendingConfig{DefaultLiquidationThreshold: 0.8})

	collateral := []entity.TokenBalance{balance("ETH", 10, 18, entity.CategoryLendingCollateral).WithPrice(3000)}
	debt := []entity.TokenBalance{balance("USDC", 20000, 6, entity.CategoryLendingDebt).WithPrice(1)}

	pos := agg.Aggregate("Aave V3", collateral, debt)

	assert.InDelta(t, 30000.0, pos.TotalSuppliedUSD, 1e-9)
	assert.InDelta(t, 20000.0, pos.TotalBorrowedUSD, 1e-9)
	assert.InDelta(t, 10000.0, pos.NetWorthUSD, 1e-9)
	require.NotNil(t, pos.HealthFactor)
	assert.InDelta(t, 1.2, *pos.HealthFactor, 1e-9)
	assert.Empty(t, pos.UnpricedSymbols)
}

func TestLendingAggregator_NoDebtHasNoHealthFactor(t *testing.T) {
	agg := NewLendingAggregator(configloader.LendingConfig{})

	pos := agg.Aggregate("Aave V3", []entity.TokenBalance{balance("WETH", 2, 18, entity.CategoryLendingCollateral).WithPrice(2500)}, nil)

	assert.Nil(t, pos.HealthFactor, "no debt means no health factor, not zero")
	assert.InDelta(t, 5000.0, pos.NetWorthUSD, 1e-9)
	assert.NotNil(t, pos.Borrowed)
	assert.Equal(t, 0.8, pos.LiquidationThreshold, "invalid config falls back to the default")
}

func TestLendingAggregator_UnpricedTokensAreFlagged(t *testing.T) {
	agg := NewLendingAggregator(configloader.LendingConfig{DefaultLiquidationThreshold: 0.8})

	collateral := []entity.TokenBalance{
		balance("WETH", 1, 18, entity.CategoryLendingCollateral).WithPrice(3000),
		balance("OBSCURE", 100, 18, entity.CategoryLendingCollateral),
	}
	debt := []entity.TokenBalance{balance("GHO", 50, 18, entity.CategoryLendingDebt)}

	pos := agg.Aggregate("Aave V3", collateral, debt)

	assert.InDelta(t, 3000.0, pos.TotalSuppliedUSD, 1e-9)
	assert.Zero(t, pos.TotalBorrowedUSD)
	assert.Nil(t, pos.HealthFactor, "unpriced debt contributes nothing")
	assert.Equal(t, []string{"GHO", "OBSCURE"}, pos.UnpricedSymbols)
}

func TestLendingAggregator_PerProtocolThreshold(t *testing.T) {
	agg := NewLendingAggregator(configloader.LendingConfig{
		DefaultLiquidationThreshold: 0.8,
		LiquidationThresholds:       map[string]float64{"Kamino": 0.65},
	})

	pos := agg.Aggregate("kamino",
		[]entity.TokenBalance{balance("SOL", 100, 9, entity.CategoryLendingCollateral).WithPrice(100)},
		[]entity.TokenBalance{balance("USDC", 5000, 6, entity.CategoryLendingDebt).WithPrice(1)})

	require.NotNil(t, pos.HealthFactor)
	assert.Equal(t, 0.65, pos.LiquidationThreshold)
	assert.InDelta(t, 1.3, *pos.HealthFactor, 1e-9)
	assert.Equal(t, 0.8, agg.ThresholdFor("Aave V3"))
}
