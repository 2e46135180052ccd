package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"portfolio_monitor/internal/infrastructure/httpclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sendTimeout = 10 * time.Second

// Telegram sends HTML messages through the Bot API.
type Telegram struct {
	client   *fasthttp.Client
	baseURL  string
	botToken string
	chatID   string
	logger   *zap.Logger
}

// NewTelegram creates a Telegram notifier for one chat.
func NewTelegram(baseURL, botToken, chatID string, logger *zap.Logger) *Telegram {
	return &Telegram{
		client:   &fasthttp.Client{},
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		logger:   logger.Named("Telegram"),
	}
}

// Notify posts message to the configured chat.
func (t *Telegram) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	// The bot token is part of the URL and must not end up in logs or errors.
	if err := httpclient.Do(ctx, t.client, req, resp, sendTimeout); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	_ = json.Unmarshal(resp.Body(), &result)
	if resp.StatusCode() != fasthttp.StatusOK || !result.OK {
		t.logger.Warn("Telegram rejected message",
			zap.Int("statusCode", resp.StatusCode()),
			zap.String("description", result.Description))
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), result.Description)
	}
	return nil
}
