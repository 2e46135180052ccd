package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"portfolio_monitor/internal/infrastructure/httpclient"
)

// Discord limits webhook content to 2000 characters.
const discordMaxContent = 2000

var htmlToMarkdown = strings.NewReplacer(
	"<b>", "**", "</b>", "**",
	"<i>", "_", "</i>", "_",
	"<code>", "`", "</code>", "`",
	"&lt;", "<", "&gt;", ">", "&amp;", "&",
)

// Discord posts messages to a webhook.
type Discord struct {
	client     *fasthttp.Client
	webhookURL string
	logger     *zap.Logger
}

// NewDiscord creates a Discord webhook notifier.
func NewDiscord(webhookURL string, logger *zap.Logger) *Discord {
	return &Discord{
		client:     &fasthttp.Client{},
		webhookURL: webhookURL,
		logger:     logger.Named("Discord"),
	}
}

// Notify posts message, converting the HTML subset used by alerts to Markdown.
func (d *Discord) Notify(ctx context.Context, message string) error {
	content := htmlToMarkdown.Replace(message)
	if len(content) > discordMaxContent {
		content = content[:discordMaxContent]
	}
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(d.webhookURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := httpclient.Do(ctx, d.client, req, resp, sendTimeout); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		d.logger.Warn("Discord rejected message", zap.Int("statusCode", status), zap.ByteString("responseBody", resp.Body()))
		return fmt.Errorf("discord webhook: status %d", status)
	}
	return nil
}
