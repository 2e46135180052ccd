package logger

import (
	"context"
	"log/slog"

	"portfolio_monitor/internal/app/port"
)

// slogAdapter implements port.Logger on top of slog. A nil base means
// "whatever the process-wide logger is at call time".
type slogAdapter struct {
	base *slog.Logger
}

// NewSlogAdapter returns a port.Logger writing through the global logger set by Init.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

// NewNop returns a port.Logger that drops everything.
func NewNop() port.Logger {
	return &slogAdapter{base: slog.New(discardHandler{})}
}

func (a *slogAdapter) logger() *slog.Logger {
	if a.base != nil {
		return a.base
	}
	return current()
}

func (a *slogAdapter) Info(msg string, args ...any) {
	a.logger().Log(context.Background(), slog.LevelInfo, msg, args...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	a.logger().Log(context.Background(), slog.LevelDebug, msg, args...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	a.logger().Log(context.Background(), slog.LevelWarn, msg, args...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	a.logger().Log(context.Background(), slog.LevelError, msg, args...)
}

func (a *slogAdapter) With(args ...any) port.Logger {
	return &slogAdapter{base: a.logger().With(args...)}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler { return d }
func (d discardHandler) WithGroup(string) slog.Handler { return d }
