package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/infrastructure/configloader"
)

// Multi fans a message out to every channel concurrently.
type Multi struct {
	channels map[string]port.Notifier
	logger   *zap.Logger
}

// NewMulti combines named channels.
func NewMulti(channels map[string]port.Notifier, logger *zap.Logger) *Multi {
	return &Multi{channels: channels, logger: logger.Named("Notifier")}
}

// FromConfig builds the enabled channels. It returns nil when none is enabled.
func FromConfig(cfg configloader.NotificationsConfig, logger *zap.Logger) *Multi {
	channels := make(map[string]port.Notifier)
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		channels["telegram"] = NewTelegram(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	}
	if cfg.Discord.Enabled && cfg.Discord.WebhookURL != "" {
		channels["discord"] = NewDiscord(cfg.Discord.WebhookURL, logger)
	}
	if len(channels) == 0 {
		return nil
	}
	return NewMulti(channels, logger)
}

// Len returns the number of channels.
func (m *Multi) Len() int {
	return len(m.channels)
}

// Notify sends to all channels. A failing channel does not stop the others;
// the joined error lists every failure.
func (m *Multi) Notify(ctx context.Context, message string) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for name, ch := range m.channels {
		name, ch := name, ch
		g.Go(func() error {
			if err := ch.Notify(ctx, message); err != nil {
				m.logger.Warn("Notification channel failed", zap.String("channel", name), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
