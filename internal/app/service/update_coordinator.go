package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const historyAppendTimeout = 10 * time.Second

// CoordinatorOptions configures an UpdateCoordinator.
type CoordinatorOptions struct {
	Interval         time.Duration
	RefreshOnStartup bool
}

// UpdateCoordinator runs refresh cycles one at a time and publishes the result.
// Readers never lock: the current snapshot is swapped atomically.
type UpdateCoordinator struct {
	aggregator port.PortfolioAggregator
	wallets    port.WalletProvider
	history    port.HistoryStore
	listeners  []port.SnapshotListener
	logger     port.Logger
	opts       CoordinatorOptions

	refreshing atomic.Bool
	current    atomic.Pointer[entity.PortfolioSnapshot]
	completed  chan struct{}

	statusMu      sync.RWMutex
	lastRefreshAt *time.Time
	lastError     string
	lastDuration  time.Duration

	// lifecycleMu orders cycle starts against Shutdown so wg.Add never follows wg.Wait.
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewUpdateCoordinator creates a new UpdateCoordinator. history may be nil.
func NewUpdateCoordinator(
	aggregator port.PortfolioAggregator,
	wallets port.WalletProvider,
	history port.HistoryStore,
	l port.Logger,
	opts CoordinatorOptions,
	listeners ...port.SnapshotListener,
) *UpdateCoordinator {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &UpdateCoordinator{
		aggregator: aggregator,
		wallets:    wallets,
		history:    history,
		listeners:  listeners,
		logger:     l,
		opts:       opts,
		completed:  make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddListener registers l for every snapshot published after the call. Call it before Run.
func (c *UpdateCoordinator) AddListener(l port.SnapshotListener) {
	c.listeners = append(c.listeners, l)
}

// Run drives timed refreshes until ctx is done or Shutdown is called.
// The next tick is scheduled only after the previous cycle completes.
func (c *UpdateCoordinator) Run(ctx context.Context) {
	delay := c.opts.Interval
	if c.opts.RefreshOnStartup {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	c.logger.Info("Update coordinator started", "interval", c.opts.Interval.String(), "refresh_on_startup", c.opts.RefreshOnStartup)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Update coordinator stopped", "reason", ctx.Err())
			return
		case <-c.ctx.Done():
			c.logger.Info("Update coordinator stopped", "reason", "shutdown")
			return
		case <-timer.C:
			if c.beginCycle() {
				c.runCycle("timer")
				c.wg.Done()
			} else {
				c.logger.Debug("Timer fired during a manual refresh, skipping")
			}
			timer.Reset(c.opts.Interval)
		case <-c.completed:
			timer.Reset(c.opts.Interval)
		}
	}
}

// TriggerRefresh starts a cycle in the background unless one is already running.
func (c *UpdateCoordinator) TriggerRefresh() entity.RefreshResult {
	if !c.beginCycle() {
		c.logger.Debug("Refresh already in progress or coordinator stopped")
		return entity.RefreshResult{Started: false}
	}

	go func() {
		defer c.wg.Done()
		c.runCycle("manual")
		select {
		case c.completed <- struct{}{}:
		default:
		}
	}()
	return entity.RefreshResult{Started: true}
}

// runCycle must only be called by the holder of the refreshing flag.
func (c *UpdateCoordinator) runCycle(trigger string) {
	cycleID := uuid.NewString()
	log := c.logger.With("cycle_id", cycleID, "trigger", trigger)
	start := time.Now()

	defer c.refreshing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			c.fail(log, start, fmt.Errorf("refresh panicked: %v", r))
		}
	}()

	log.Info("Refresh cycle started")

	wallets, err := c.wallets.GetWallets()
	if err != nil {
		c.fail(log, start, fmt.Errorf("load wallets: %w", err))
		return
	}

	snapshot, failures := c.aggregator.BuildSnapshot(c.ctx, wallets)
	if c.ctx.Err() != nil {
		c.fail(log, start, fmt.Errorf("refresh cancelled: %w", c.ctx.Err()))
		return
	}
	if snapshot == nil {
		c.fail(log, start, errors.New("aggregator returned no snapshot"))
		return
	}
	if len(wallets) > 0 && len(snapshot.Wallets) == 0 {
		c.fail(log, start, fmt.Errorf("all %d wallets failed", len(failures)))
		return
	}

	snapshot.CycleID = cycleID
	c.current.Store(snapshot)
	metrics.TotalUSD.Set(snapshot.TotalUSDValue)
	metrics.DebtUSD.Set(snapshot.TotalDefiDebtUSD)

	c.appendHistory(log, snapshot)
	c.notifyListeners(log, snapshot)

	took := time.Since(start)
	c.statusMu.Lock()
	at := snapshot.GeneratedAt
	c.lastRefreshAt = &at
	c.lastError = ""
	c.lastDuration = took
	c.statusMu.Unlock()

	metrics.ObserveRefresh("success", took)
	log.Info("Refresh cycle completed",
		"wallets", len(snapshot.Wallets), "failed", len(failures),
		"total_usd", snapshot.TotalUSDValue, "duration", took.String())
}

// fail records Refreshing -> Failed; the deferred flag release returns the coordinator to Idle.
func (c *UpdateCoordinator) fail(log port.Logger, start time.Time, err error) {
	took := time.Since(start)
	c.statusMu.Lock()
	c.lastError = err.Error()
	c.lastDuration = took
	c.statusMu.Unlock()

	metrics.ObserveRefresh("failed", took)
	log.Error("Refresh cycle failed, keeping previous snapshot", "state", entity.StateFailed, "error", err)
}

func (c *UpdateCoordinator) appendHistory(log port.Logger, snapshot *entity.PortfolioSnapshot) {
	if c.history == nil {
		return
	}
	payload, err := json.Marshal(snapshot.Summary())
	if err != nil {
		log.Error("Failed to encode history payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, historyAppendTimeout)
	defer cancel()
	err = c.history.Append(ctx, entity.HistoryRecord{
		CycleID:   snapshot.CycleID,
		Timestamp: snapshot.GeneratedAt,
		TotalUSD:  snapshot.TotalUSDValue,
		DefiUSD:   snapshot.TotalDefiSuppliedUSD,
		DebtUSD:   snapshot.TotalDefiDebtUSD,
		Payload:   payload,
	})
	if err != nil {
		log.Error("History append failed, snapshot stays published", "error", err)
	}
}

func (c *UpdateCoordinator) notifyListeners(log port.Logger, snapshot *entity.PortfolioSnapshot) {
	for _, l := range c.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Snapshot listener panicked", "listener", fmt.Sprintf("%T", l), "panic", r)
				}
			}()
			l.OnSnapshot(c.ctx, snapshot)
		}()
	}
}

// GetCurrentSnapshot fails with entity.ErrNotYetAvailable before the first successful cycle.
func (c *UpdateCoordinator) GetCurrentSnapshot() (*entity.PortfolioSnapshot, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, entity.ErrNotYetAvailable
	}
	return snap, nil
}

// GetWalletSnapshot fails with entity.ErrNotFound, including before the first snapshot.
func (c *UpdateCoordinator) GetWalletSnapshot(chain, address string) (*entity.WalletSnapshot, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("wallet %s on %s: %w", address, chain, entity.ErrNotFound)
	}
	w, ok := snap.FindWallet(chain, address)
	if !ok {
		return nil, fmt.Errorf("wallet %s on %s: %w", address, chain, entity.ErrNotFound)
	}
	return w, nil
}

// GetStatus returns the coordinator state without blocking on a running cycle.
func (c *UpdateCoordinator) GetStatus() entity.CoordinatorStatus {
	status := entity.CoordinatorStatus{State: entity.StateIdle, Chains: []string{}}
	if c.refreshing.Load() {
		status.State = entity.StateRefreshing
	}

	if wallets, err := c.wallets.GetWallets(); err == nil {
		status.WalletsMonitored = len(wallets)
		seen := make(map[string]struct{})
		for _, w := range wallets {
			chain := strings.ToLower(w.Chain)
			if _, ok := seen[chain]; !ok {
				seen[chain] = struct{}{}
				status.Chains = append(status.Chains, chain)
			}
		}
		sort.Strings(status.Chains)
	}

	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	if c.lastRefreshAt != nil {
		at := *c.lastRefreshAt
		status.LastRefreshAt = &at
	}
	status.LastError = c.lastError
	status.LastDuration = c.lastDuration
	return status
}

// beginCycle claims the refreshing flag and registers the cycle with wg.
// It fails once Shutdown has started. The caller must call wg.Done.
func (c *UpdateCoordinator) beginCycle() bool {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.ctx.Err() != nil {
		return false
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		return false
	}
	c.wg.Add(1)
	return true
}

// Shutdown cancels any in-flight cycle and waits for it to return.
// No cycle starts after Shutdown.
func (c *UpdateCoordinator) Shutdown() {
	c.lifecycleMu.Lock()
	c.cancel()
	c.lifecycleMu.Unlock()
	c.wg.Wait()
}
