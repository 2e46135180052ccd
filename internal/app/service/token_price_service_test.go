package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_monitor/internal/domain/entity"
)

func TestPriceService_StablecoinsSkipUpstream(t *testing.T) {
	feed := &fakePriceFeed{prices: map[string]float64{"USDC": 0.99}}
	svc := NewPriceService(feed, time.Minute, nopLogger())

	prices, err := svc.Resolve(context.Background(), []string{"USDC", "usdt", "DAI", "BUSD", "TUSD"})
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"USDC": 1, "USDT": 1, "DAI": 1, "BUSD": 1, "TUSD": 1}, prices)
	assert.Equal(t, int32(0), feed.calls.Load())
}

func TestPriceService_CacheHitWithinStaleness(t *testing.T) {
	feed := &fakePriceFeed{prices: map[string]float64{"ETH": 3000, "SOL": 150}}
	svc := NewPriceService(feed, time.Minute, nopLogger())
	ctx := context.Background()

	first, err := svc.Resolve(ctx, []string{"ETH", "SOL", "UNKNOWN"})
	require.NoError(t, err)
	second, err := svc.Resolve(ctx, []string{"SOL", "ETH", "UNKNOWN"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), feed.calls.Load(), "second resolve is served from cache")
	_, present := first["UNKNOWN"]
	assert.False(t, present, "unresolved symbols are omitted, never zero")
}

func TestPriceService_BatchesDistinctSymbolsIntoOneCall(t *testing.T) {
	feed := &fakePriceFeed{prices: map[string]float64{"ETH": 3000, "APT": 8}}
	svc := NewPriceService(feed, time.Minute, nopLogger())

	_, err := svc.Resolve(context.Background(), []string{"eth", "ETH", " apt ", "", "USDC"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), feed.calls.Load())
	assert.Equal(t, []string{"APT", "ETH"}, feed.lastRequest())
}

func TestPriceService_StalenessExpiry(t *testing.T) {
	feed := &fakePriceFeed{prices: map[string]float64{"ETH": 3000}}
	svc := NewPriceService(feed, 50*time.Millisecond, nopLogger())
	ctx := context.Background()

	_, err := svc.Resolve(ctx, []string{"ETH"})
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)
	_, err = svc.Resolve(ctx, []string{"ETH"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), feed.calls.Load())
}

func TestPriceService_UpstreamFailureReturnsPartialMap(t *testing.T) {
	feed := &fakePriceFeed{prices: map[string]float64{"ETH": 3000}}
	svc := NewPriceService(feed, time.Minute, nopLogger())
	ctx := context.Background()

	_, err := svc.Resolve(ctx, []string{"ETH"})
	require.NoError(t, err)

	feed.err = errBoom
	prices, err := svc.Resolve(ctx, []string{"ETH", "SOL", "USDT"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUpstreamUnavailable))
	assert.Equal(t, map[string]float64{"ETH": 3000, "USDT": 1}, prices)

	feed.err = nil
	_, err = svc.Resolve(ctx, []string{"SOL"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), feed.calls.Load(), "failures are not cached")
}

func TestPriceService_PartialFeedFailureKeepsFetchedPrices(t *testing.T) {
	feed := &fakePriceFeed{
		prices:  map[string]float64{"ETH": 3000},
		err:     errors.New("dexscreener: 503"),
		partial: true,
	}
	svc := NewPriceService(feed, time.Minute, nopLogger())
	ctx := context.Background()

	prices, err := svc.Resolve(ctx, []string{"ETH", "BONK"})
	require.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	assert.Equal(t, 3000.0, prices["ETH"])
	assert.NotContains(t, prices, "BONK")

	feed.err = nil
	feed.prices["BONK"] = 0.00002
	prices, err = svc.Resolve(ctx, []string{"ETH", "BONK"})
	require.NoError(t, err)
	assert.Equal(t, 3000.0, prices["ETH"])
	assert.InDelta(t, 0.00002, prices["BONK"], 1e-12, "failed symbol is retried, not negatively cached")
	assert.Equal(t, []string{"BONK"}, feed.lastRequest(), "ETH served from cache")
	assert.Equal(t, int32(2), feed.calls.Load())
}
