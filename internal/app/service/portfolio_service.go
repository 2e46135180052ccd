package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
	"portfolio_monitor/internal/pkg/metrics"
)

// PortfolioService implements port.PortfolioAggregator.
type PortfolioService struct {
	adapters        port.ChainAdapterProvider
	classifier      *TokenClassifier
	prices          port.PriceSource
	lending         *LendingAggregator
	logger          port.Logger
	perFetchTimeout time.Duration
	maxConcurrent   int
	now             func() time.Time
}

// NewPortfolioService creates a new instance of PortfolioService.
func NewPortfolioService(
	adapters port.ChainAdapterProvider,
	classifier *TokenClassifier,
	prices port.PriceSource,
	lending *LendingAggregator,
	l port.Logger,
	cfg configloader.PortfolioConfig,
) *PortfolioService {
	maxConcurrent := cfg.MaxConcurrentFetches
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	timeout := cfg.PerFetchTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PortfolioService{
		adapters:        adapters,
		classifier:      classifier,
		prices:          prices,
		lending:         lending,
		logger:          l,
		perFetchTimeout: timeout,
		maxConcurrent:   maxConcurrent,
		now:             time.Now,
	}
}

// fetchedWallet is one wallet between fetch and pricing.
type fetchedWallet struct {
	wallet       entity.Wallet
	nativeSymbol string
	native       decimal.Decimal
	tokens       []entity.TokenBalance
	observedAt   time.Time
	err          error
}

// BuildSnapshot fetches every wallet concurrently, resolves prices once and
// assembles the snapshot in the order wallets were given.
func (s *PortfolioService) BuildSnapshot(ctx context.Context, wallets []entity.Wallet) (*entity.PortfolioSnapshot, []entity.PortfolioError) {
	s.logger.Debug("Building portfolio snapshot", "wallets", len(wallets), "max_concurrent", s.maxConcurrent)

	results := make([]fetchedWallet, len(wallets))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)

	for i, w := range wallets {
		i, w := i, w
		g.Go(func() error {
			results[i] = s.fetchWallet(ctx, w)
			return nil
		})
	}
	_ = g.Wait()

	var failures []entity.PortfolioError
	symbolSet := make(map[string]struct{})
	for _, r := range results {
		if r.err != nil {
			kind := entity.ErrorKind(r.err)
			metrics.WalletFetchFailures.WithLabelValues(r.wallet.Chain, kind).Inc()
			s.logger.Warn("Wallet excluded from snapshot",
				"chain", r.wallet.Chain, "address", r.wallet.Address, "label", r.wallet.Label,
				"kind", kind, "error", r.err)
			failures = append(failures, entity.PortfolioError{
				Chain:         r.wallet.Chain,
				WalletAddress: r.wallet.Address,
				Label:         r.wallet.Label,
				Kind:          kind,
				Message:       r.err.Error(),
			})
			continue
		}
		if r.nativeSymbol != "" {
			symbolSet[r.nativeSymbol] = struct{}{}
		}
		for _, t := range r.tokens {
			if t.Symbol != "" {
				symbolSet[t.Symbol] = struct{}{}
			}
		}
	}

	prices := map[string]float64{}
	if len(symbolSet) > 0 {
		symbols := make([]string, 0, len(symbolSet))
		for sym := range symbolSet {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		resolved, err := s.prices.Resolve(ctx, symbols)
		if err != nil {
			s.logger.Warn("Price resolution incomplete, affected values stay unknown", "error", err)
		}
		if resolved != nil {
			prices = resolved
		}
	}

	snapshot := &entity.PortfolioSnapshot{
		Wallets:         make([]entity.WalletSnapshot, 0, len(wallets)),
		PartialFailures: failures,
		GeneratedAt:     s.now().UTC(),
	}
	for _, r := range results {
		if r.err != nil {
			continue
		}
		ws, supplied, debt := s.assembleWallet(r, prices)
		snapshot.Wallets = append(snapshot.Wallets, ws)
		snapshot.TotalUSDValue += ws.TotalUSDValue
		snapshot.TotalDefiSuppliedUSD += supplied
		snapshot.TotalDefiDebtUSD += debt
	}

	s.logger.Info("Portfolio snapshot built",
		"wallets", len(snapshot.Wallets), "failed", len(failures),
		"total_usd", snapshot.TotalUSDValue, "priced_symbols", len(prices))
	return snapshot, failures
}

func (s *PortfolioService) fetchWallet(ctx context.Context, w entity.Wallet) fetchedWallet {
	res := fetchedWallet{wallet: w}

	adapter, err := s.adapters.GetAdapter(w.Chain)
	if err != nil {
		res.err = fmt.Errorf("chain %q: %w", w.Chain, err)
		return res
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.perFetchTimeout)
	defer cancel()

	balances, err := adapter.Fetch(fetchCtx, w.Address)
	if err != nil {
		res.err = fmt.Errorf("fetch %s on %s: %w", w.Address, w.Chain, err)
		return res
	}

	def := adapter.Definition()
	res.nativeSymbol = def.NativeSymbol
	res.native = balances.NativeBalance
	res.observedAt = s.now().UTC()
	res.tokens = make([]entity.TokenBalance, 0, len(balances.Tokens))
	for _, raw := range balances.Tokens {
		if raw.RawAmount == nil || raw.RawAmount.Sign() <= 0 {
			continue
		}
		c := s.classifier.Classify(w.Chain, raw.HintedSymbol, raw.HintedName, raw.Identifier)
		name := c.Name
		if name == "" {
			name = raw.HintedName
		}
		res.tokens = append(res.tokens, entity.TokenBalance{
			Symbol:      c.Symbol,
			DisplayName: name,
			RawAmount:   raw.RawAmount,
			Decimals:    raw.Decimals,
			Address:     raw.Identifier,
			Category:    c.Category,
			Protocol:    c.Protocol,
		})
	}
	s.logger.Debug("Wallet fetched", "chain", w.Chain, "address", w.Address, "tokens", len(res.tokens))
	return res
}

type positionKey struct {
	protocol     string
	positionType entity.PositionType
}

// assembleWallet attaches prices and splits plain holdings from DeFi positions.
// It returns the snapshot plus the wallet's DeFi supplied and debt totals.
func (s *PortfolioService) assembleWallet(r fetchedWallet, prices map[string]float64) (entity.WalletSnapshot, float64, float64) {
	ws := entity.WalletSnapshot{
		Chain:         r.wallet.Chain,
		Address:       r.wallet.Address,
		Label:         r.wallet.Label,
		NativeSymbol:  r.nativeSymbol,
		NativeBalance: r.native,
		Tokens:        []entity.TokenBalance{},
		DeFiPositions: []entity.DeFiPosition{},
		ObservedAt:    r.observedAt,
	}

	if p, ok := prices[r.nativeSymbol]; ok && r.nativeSymbol != "" {
		v := r.native.InexactFloat64() * p
		ws.NativeUSDValue = &v
		ws.TotalUSDValue += v
	}

	groups := make(map[positionKey][]entity.TokenBalance)
	for _, t := range r.tokens {
		if p, ok := prices[t.Symbol]; ok && t.Symbol != "" {
			t = t.WithPrice(p)
		}
		if !t.Category.IsDeFi() {
			ws.Tokens = append(ws.Tokens, t)
			if t.USDValue != nil {
				ws.TotalUSDValue += *t.USDValue
			}
			continue
		}
		key := positionKey{protocol: t.Protocol, positionType: t.Category.PositionType()}
		groups[key] = append(groups[key], t)
	}

	keys := make([]positionKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].protocol != keys[j].protocol {
			return keys[i].protocol < keys[j].protocol
		}
		return keys[i].positionType < keys[j].positionType
	})

	var supplied, debt float64
	for _, k := range keys {
		pos := s.buildPosition(k, groups[k])
		ws.DeFiPositions = append(ws.DeFiPositions, pos)
		ws.TotalUSDValue += pos.ContributionUSD()
		if pos.Lending != nil {
			supplied += pos.Lending.TotalSuppliedUSD
			debt += pos.Lending.TotalBorrowedUSD
		} else if pos.TotalUSDValue != nil {
			supplied += *pos.TotalUSDValue
		}
	}
	return ws, supplied, debt
}

func (s *PortfolioService) buildPosition(k positionKey, tokens []entity.TokenBalance) entity.DeFiPosition {
	pos := entity.DeFiPosition{Protocol: k.protocol, PositionType: k.positionType}

	anyPriced := false
	for _, t := range tokens {
		if t.USDValue != nil {
			anyPriced = true
			break
		}
	}

	if k.positionType == entity.PositionLending {
		var collateral, borrowed []entity.TokenBalance
		for _, t := range tokens {
			if t.Category == entity.CategoryLendingDebt {
				borrowed = append(borrowed, t)
			} else {
				collateral = append(collateral, t)
			}
		}
		lp := s.lending.Aggregate(k.protocol, collateral, borrowed)
		if len(lp.UnpricedSymbols) > 0 {
			s.logger.Warn("Lending position has unpriced tokens", "protocol", k.protocol, "symbols", lp.UnpricedSymbols)
		}
		pos.Lending = &lp
		pos.Tokens = append(append([]entity.TokenBalance{}, collateral...), borrowed...)
		if anyPriced {
			net := lp.NetWorthUSD
			pos.TotalUSDValue = &net
		}
		return pos
	}

	pos.Tokens = tokens
	if anyPriced {
		var total float64
		for _, t := range tokens {
			if t.USDValue != nil {
				total += *t.USDValue
			}
		}
		pos.TotalUSDValue = &total
	}
	return pos
}
