package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// BalanceAlertService compares native balances between snapshots and notifies
// when the relative change reaches the threshold.
type BalanceAlertService struct {
	notifier         port.Notifier
	logger           port.Logger
	thresholdPercent decimal.Decimal

	mu       sync.Mutex
	previous map[string]decimal.Decimal
}

// NewBalanceAlertService creates a new BalanceAlertService. notifier may be nil, in which case alerts are only logged.
func NewBalanceAlertService(notifier port.Notifier, thresholdPercent float64, l port.Logger) *BalanceAlertService {
	if thresholdPercent <= 0 {
		thresholdPercent = 5
	}
	return &BalanceAlertService{
		notifier:         notifier,
		logger:           l,
		thresholdPercent: decimal.NewFromFloat(thresholdPercent),
		previous:         make(map[string]decimal.Decimal),
	}
}

// OnSnapshot implements port.SnapshotListener.
func (s *BalanceAlertService) OnSnapshot(ctx context.Context, snapshot *entity.PortfolioSnapshot) {
	alerts := s.detect(snapshot)
	for _, msg := range alerts {
		s.logger.Info("Balance change alert", "message", msg)
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.logger.Warn("Failed to deliver balance alert", "error", err)
		}
	}
}

func (s *BalanceAlertService) detect(snapshot *entity.PortfolioSnapshot) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alerts []string
	for _, w := range snapshot.Wallets {
		key := w.Wallet().Key()
		prev, seen := s.previous[key]
		s.previous[key] = w.NativeBalance
		if !seen || !prev.IsPositive() {
			continue
		}

		change := w.NativeBalance.Sub(prev).Div(prev).Mul(hundred)
		if change.Abs().LessThan(s.thresholdPercent) {
			continue
		}
		alerts = append(alerts, formatAlert(w, change))
	}
	return alerts
}

func formatAlert(w entity.WalletSnapshot, change decimal.Decimal) string {
	direction := "increase"
	sign := "+"
	if change.IsNegative() {
		direction = "decrease"
		sign = ""
	}
	label := w.Label
	if label == "" {
		label = "wallet"
	}

	var b strings.Builder
	b.WriteString("<b>Balance change detected</b>\n")
	fmt.Fprintf(&b, "Chain: %s\n", html.EscapeString(w.Chain))
	fmt.Fprintf(&b, "Wallet: %s (<code>%s</code>)\n", html.EscapeString(label), html.EscapeString(w.Address))
	fmt.Fprintf(&b, "Direction: %s\n", direction)
	fmt.Fprintf(&b, "Change: %s%s%%\n", sign, change.StringFixed(2))
	fmt.Fprintf(&b, "Balance: %s %s", w.NativeBalance.String(), html.EscapeString(w.NativeSymbol))
	return b.String()
}
