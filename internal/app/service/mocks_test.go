package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/pkg/logger"
)

func nopLogger() port.Logger {
	return logger.NewNop()
}

// fakePriceFeed returns fixed prices and counts calls. With partial set, a
// failing feed still returns the prices it knows, like the composite feed.
type fakePriceFeed struct {
	prices  map[string]float64
	err     error
	partial bool
	calls   atomic.Int32

	mu        sync.Mutex
	requested [][]string
}

func (f *fakePriceFeed) FetchPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requested = append(f.requested, append([]string(nil), symbols...))
	f.mu.Unlock()
	if f.err != nil && !f.partial {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, f.err
}

func (f *fakePriceFeed) lastRequest() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requested) == 0 {
		return nil
	}
	return f.requested[len(f.requested)-1]
}

// fakeAdapter serves balances per address.
type fakeAdapter struct {
	def      entity.ChainDefinition
	balances map[string]entity.ChainBalances
	errs     map[string]error
	delay    time.Duration
	calls    atomic.Int32
}

func (a *fakeAdapter) Definition() entity.ChainDefinition { return a.def }

func (a *fakeAdapter) Fetch(ctx context.Context, address string) (entity.ChainBalances, error) {
	a.calls.Add(1)
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return entity.ChainBalances{}, ctx.Err()
		}
	}
	if err, ok := a.errs[address]; ok {
		return entity.ChainBalances{}, err
	}
	return a.balances[address], nil
}

// fakeAdapterProvider maps chain identifiers to adapters.
type fakeAdapterProvider struct {
	adapters map[string]port.ChainAdapter
}

func (p *fakeAdapterProvider) GetAdapter(chain string) (port.ChainAdapter, error) {
	if a, ok := p.adapters[strings.ToLower(chain)]; ok {
		return a, nil
	}
	return nil, entity.ErrUnsupportedChain
}

// fakeAggregator returns a canned snapshot, optionally blocking until released.
type fakeAggregator struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	build   func(wallets []entity.Wallet) (*entity.PortfolioSnapshot, []entity.PortfolioError)
}

func (a *fakeAggregator) BuildSnapshot(ctx context.Context, wallets []entity.Wallet) (*entity.PortfolioSnapshot, []entity.PortfolioError) {
	a.calls.Add(1)
	if a.started != nil {
		select {
		case a.started <- struct{}{}:
		default:
		}
	}
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
		}
	}
	if a.build != nil {
		return a.build(wallets)
	}
	snaps := make([]entity.WalletSnapshot, 0, len(wallets))
	for _, w := range wallets {
		snaps = append(snaps, entity.WalletSnapshot{Chain: w.Chain, Address: w.Address, Label: w.Label, TotalUSDValue: 100})
	}
	return &entity.PortfolioSnapshot{Wallets: snaps, TotalUSDValue: float64(100 * len(wallets)), GeneratedAt: time.Now()}, nil
}

// memoryHistoryStore records appends in memory.
type memoryHistoryStore struct {
	mu      sync.Mutex
	records []entity.HistoryRecord
	err     error
}

func (s *memoryHistoryStore) Append(_ context.Context, rec entity.HistoryRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryHistoryStore) Query(_ context.Context, since time.Time) ([]entity.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.HistoryRecord
	for _, r := range s.records {
		if r.Timestamp.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryHistoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// staticWalletProvider returns a fixed wallet list.
type staticWalletProvider struct {
	wallets []entity.Wallet
	err     error
}

func (p *staticWalletProvider) GetWallets() ([]entity.Wallet, error) {
	return p.wallets, p.err
}

// recordingNotifier keeps every message.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.err
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// countingListener counts snapshots.
type countingListener struct {
	calls atomic.Int32
	last  atomic.Pointer[entity.PortfolioSnapshot]
}

func (l *countingListener) OnSnapshot(_ context.Context, s *entity.PortfolioSnapshot) {
	l.calls.Add(1)
	l.last.Store(s)
}

var errBoom = errors.New("boom")
