package notifier

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/infrastructure/configloader"
)

func TestTelegram_Notify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_ = stdjson.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL+"/", "TOKEN", "42", zap.NewNop())
	require.NoError(t, tg.Notify(context.Background(), "<b>hi</b>"))

	assert.Equal(t, map[string]string{"chat_id": "42", "text": "<b>hi</b>", "parse_mode": "HTML"}, got)
}

func TestTelegram_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegram(srv.URL, "TOKEN", "1", zap.NewNop()).Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.NotContains(t, err.Error(), "TOKEN")
}

func TestDiscord_Notify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = stdjson.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL+"/api/webhooks/1/abc", zap.NewNop())
	require.NoError(t, d.Notify(context.Background(), "<b>ETH</b> balance <code>0x1</code> &amp; more"))
	assert.Equal(t, "**ETH** balance `0x1` & more", got["content"])
}

type fakeChannel struct {
	calls atomic.Int32
	err   error
}

func (f *fakeChannel) Notify(context.Context, string) error {
	f.calls.Add(1)
	return f.err
}

func TestMulti_FailingChannelDoesNotBlockOthers(t *testing.T) {
	ok := &fakeChannel{}
	bad := &fakeChannel{err: errors.New("down")}
	m := NewMulti(map[string]port.Notifier{"ok": ok, "bad": bad}, zap.NewNop())

	err := m.Notify(context.Background(), "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, int32(1), bad.calls.Load())
}

func TestFromConfig(t *testing.T) {
	assert.Nil(t, FromConfig(configloader.NotificationsConfig{}, zap.NewNop()))

	m := FromConfig(configloader.NotificationsConfig{
		Telegram: configloader.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c", BaseURL: "http://x"},
		Discord:  configloader.DiscordConfig{Enabled: true},
	}, zap.NewNop())
	require.NotNil(t, m)
	assert.Equal(t, 1, m.Len(), "discord without webhook is skipped")
}
