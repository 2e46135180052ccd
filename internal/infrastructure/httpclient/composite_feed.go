package httpclient

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_monitor/internal/pkg/utils"
)

var stablecoinQuoteSymbols = map[string]struct{}{
	"USDT": {}, "USDC": {}, "DAI": {}, "BUSD": {}, "TUSD": {},
	"USDC.E": {}, "USDBC": {}, "FDUSD": {}, "USDE": {},
}

// DEXTokenRef points DEXScreener at the token whose pairs price a symbol.
type DEXTokenRef struct {
	Chain   string
	Address string
}

// CompositeFeed answers symbol price requests from CoinGecko and DEXScreener.
// A symbol mapped to a CoinGecko id is never sent to DEXScreener.
type CompositeFeed struct {
	coinGecko   CoinGeckoClient
	dexScreener DEXScreenerClient
	geckoIDs    map[string]string
	dexTokens   map[string]DEXTokenRef
	logger      *zap.Logger
}

// NewCompositeFeed creates a feed. Either client may be nil to disable that provider.
func NewCompositeFeed(coinGecko CoinGeckoClient, dexScreener DEXScreenerClient, geckoIDs map[string]string, dexTokens map[string]DEXTokenRef, logger *zap.Logger) *CompositeFeed {
	ids := make(map[string]string, len(geckoIDs))
	for symbol, id := range geckoIDs {
		ids[strings.ToUpper(symbol)] = id
	}
	refs := make(map[string]DEXTokenRef, len(dexTokens))
	for symbol, ref := range dexTokens {
		refs[strings.ToUpper(symbol)] = DEXTokenRef{Chain: strings.ToLower(ref.Chain), Address: ref.Address}
	}
	return &CompositeFeed{
		coinGecko:   coinGecko,
		dexScreener: dexScreener,
		geckoIDs:    ids,
		dexTokens:   refs,
		logger:      logger.Named("CompositeFeed"),
	}
}

// FetchPrices resolves what it can. Provider failures are joined into the returned
// error alongside whatever prices the other providers produced.
func (f *CompositeFeed) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	geckoSymbolsByID := make(map[string][]string)
	dexByChain := make(map[string]map[string][]string) // chain -> address -> symbols
	unmapped := 0

	for _, raw := range symbols {
		symbol := strings.ToUpper(raw)
		if id, ok := f.geckoIDs[symbol]; ok && f.coinGecko != nil {
			geckoSymbolsByID[id] = append(geckoSymbolsByID[id], symbol)
			continue
		}
		if ref, ok := f.dexTokens[symbol]; ok && f.dexScreener != nil {
			if dexByChain[ref.Chain] == nil {
				dexByChain[ref.Chain] = make(map[string][]string)
			}
			dexByChain[ref.Chain][ref.Address] = append(dexByChain[ref.Chain][ref.Address], symbol)
			continue
		}
		unmapped++
	}
	if unmapped > 0 {
		f.logger.Debug("Symbols without a price mapping", zap.Int("count", unmapped))
	}

	var (
		mu     sync.Mutex
		prices = make(map[string]float64)
		errs   []error
	)
	record := func(got map[string]float64, err error) {
		mu.Lock()
		defer mu.Unlock()
		for k, v := range got {
			prices[k] = v
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	var g errgroup.Group
	if len(geckoSymbolsByID) > 0 {
		g.Go(func() error {
			record(f.fetchCoinGecko(ctx, geckoSymbolsByID))
			return nil
		})
	}
	for chain, byAddress := range dexByChain {
		chain, byAddress := chain, byAddress
		g.Go(func() error {
			record(f.fetchDEXScreener(ctx, chain, byAddress))
			return nil
		})
	}
	_ = g.Wait()

	return prices, errors.Join(errs...)
}

func (f *CompositeFeed) fetchCoinGecko(ctx context.Context, symbolsByID map[string][]string) (map[string]float64, error) {
	ids := make([]string, 0, len(symbolsByID))
	for id := range symbolsByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	byID, err := f.coinGecko.SimplePrice(ctx, ids)
	if err != nil {
		f.logger.Warn("CoinGecko price fetch failed", zap.Error(err))
		return nil, err
	}

	out := make(map[string]float64)
	for id, price := range byID {
		for _, symbol := range symbolsByID[id] {
			out[symbol] = price
		}
	}
	return out, nil
}

func (f *CompositeFeed) fetchDEXScreener(ctx context.Context, chain string, symbolsByAddress map[string][]string) (map[string]float64, error) {
	addresses := make([]string, 0, len(symbolsByAddress))
	for addr := range symbolsByAddress {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	pairs, err := f.dexScreener.GetTokenPairsByAddresses(ctx, chain, addresses)
	out := make(map[string]float64)
	for _, addr := range addresses {
		priceStr := f.selectBestPriceFromPairs(pairs, addr)
		if priceStr == "" {
			continue
		}
		price, parseErr := strconv.ParseFloat(priceStr, 64)
		if parseErr != nil || price <= 0 {
			f.logger.Warn("Unusable DEXScreener price",
				zap.String("chain", chain),
				zap.String("address", addr),
				zap.String("priceUsd", priceStr))
			continue
		}
		for _, symbol := range symbolsByAddress[addr] {
			out[symbol] = price
		}
	}
	if err != nil {
		f.logger.Warn("DEXScreener price fetch failed", zap.String("chain", chain), zap.Error(err))
	}
	return out, err
}

// selectBestPriceFromPairs prefers the most liquid pair quoted in a stablecoin,
// then the most liquid pair overall.
func (f *CompositeFeed) selectBestPriceFromPairs(pairs []PairData, baseTokenAddress string) string {
	if len(pairs) == 0 {
		return ""
	}

	var bestOverallPair *PairData
	var bestStablecoinPair *PairData

	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}

		_, isStablecoin := stablecoinQuoteSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]
		if isStablecoin && moreLiquid(pair, bestStablecoinPair) {
			bestStablecoinPair = pair
		}
		if moreLiquid(pair, bestOverallPair) {
			bestOverallPair = pair
		}
	}

	best := bestStablecoinPair
	if best == nil {
		best = bestOverallPair
	}
	if best == nil {
		f.logger.Debug("No suitable price found from pairs",
			zap.String("baseTokenAddress", baseTokenAddress),
			zap.Int("evaluatedPairCount", len(pairs)))
		return ""
	}

	f.logger.Debug("Selected best price from pairs",
		zap.String("baseTokenAddress", baseTokenAddress),
		zap.String("pairAddress", best.PairAddress),
		zap.String("priceUsd", best.PriceUsd),
		zap.Float64("liquidityUsd", utils.SafeDerefFloat64(best.Liquidity, func(l DEXLiquidity) float64 { return l.Usd })),
		zap.String("quoteToken", best.QuoteToken.Symbol))
	return best.PriceUsd
}

func moreLiquid(candidate, current *PairData) bool {
	if current == nil {
		return true
	}
	liq := func(p *PairData) float64 {
		return utils.SafeDerefFloat64(p.Liquidity, func(l DEXLiquidity) float64 { return l.Usd })
	}
	return liq(candidate) > liq(current)
}
