package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// CoinGeckoClient fetches USD spot prices by CoinGecko coin id.
type CoinGeckoClient interface {
	SimplePrice(ctx context.Context, ids []string) (map[string]float64, error)
}

type coinGeckoClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCoinGeckoClient creates a CoinGecko client. apiKey is optional and sent as the demo key header.
func NewCoinGeckoClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) CoinGeckoClient {
	return &coinGeckoClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("CoinGeckoClient"),
	}
}

// SimplePrice returns id -> USD price. Ids CoinGecko does not know are absent from the result.
func (c *coinGeckoClientImpl) SimplePrice(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	requestURL := c.baseURL + "/simple/price?" + query.Encode()
	c.logger.Debug("Requesting prices from CoinGecko", zap.Int("idCount", len(ids)))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := Do(ctx, c.client, req, resp, c.timeout); err != nil {
		c.logger.Error("Failed to execute request to CoinGecko", zap.Error(err))
		return nil, TransportError(ctx, c.baseURL+"/simple/price", err)
	}

	body := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("CoinGecko API request failed",
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", body))
		return nil, fmt.Errorf("CoinGecko simple/price: %w", StatusError(resp.StatusCode(), body))
	}

	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CoinGecko response: %w", err)
	}

	prices := make(map[string]float64, len(payload))
	for id, quotes := range payload {
		if usd, ok := quotes["usd"]; ok && usd > 0 {
			prices[id] = usd
		}
	}
	return prices, nil
}
