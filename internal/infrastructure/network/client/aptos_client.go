package client

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/httpclient"
)

const (
	aptosCoinType      = "0x1::aptos_coin::AptosCoin"
	aptosCoinStorePref = "0x1::coin::CoinStore<"
)

var aptosAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

type aptosResource struct {
	Type string `json:"type"`
	Data struct {
		Coin struct {
			Value string `json:"value"`
		} `json:"coin"`
	} `json:"data"`
}

// AptosAdapter implements port.ChainAdapter over the Aptos fullnode REST API.
type AptosAdapter struct {
	def    entity.ChainDefinition
	client *fasthttp.Client
	hints  map[string]entity.TokenInfo // by coin type
	policy *RetryPolicy
	logger port.Logger
}

// NewAptosAdapter creates an adapter for def. tokens supply decimals and symbols for non-native coin types.
func NewAptosAdapter(def entity.ChainDefinition, tokens []entity.TokenInfo, log port.Logger) *AptosAdapter {
	hints := make(map[string]entity.TokenInfo, len(tokens))
	for _, t := range tokens {
		hints[t.Address] = t
	}
	return &AptosAdapter{
		def:    def,
		client: &fasthttp.Client{},
		hints:  hints,
		policy: NewRetryPolicy(def),
		logger: log.With("chain", def.Identifier),
	}
}

// Definition returns the chain definition for this adapter.
func (a *AptosAdapter) Definition() entity.ChainDefinition {
	return a.def
}

// Fetch reads the account's CoinStore resources. An account that does not exist on chain
// holds nothing.
func (a *AptosAdapter) Fetch(ctx context.Context, address string) (entity.ChainBalances, error) {
	if !aptosAddressPattern.MatchString(address) {
		return entity.ChainBalances{}, fmt.Errorf("aptos address %q: %w", address, entity.ErrInvalidAddress)
	}

	var out entity.ChainBalances
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.fetchWithFallback(ctx, address)
		return callErr
	})
	return out, err
}

func (a *AptosAdapter) fetchWithFallback(ctx context.Context, address string) (entity.ChainBalances, error) {
	lastErr := fmt.Errorf("no REST endpoints configured for %s: %w", a.def.Identifier, entity.ErrUpstreamUnavailable)
	for _, base := range append([]string{a.def.PrimaryRPCURL}, a.def.FallbackRPCURLs...) {
		if base == "" {
			continue
		}
		balances, err := a.fetchFrom(ctx, strings.TrimRight(base, "/"), address)
		if err == nil {
			return balances, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
		a.logger.Warn("Aptos REST call failed, trying next endpoint", "endpoint", base, "error", err)
	}
	return entity.ChainBalances{}, lastErr
}

func (a *AptosAdapter) fetchFrom(ctx context.Context, base, address string) (entity.ChainBalances, error) {
	requestURL := fmt.Sprintf("%s/accounts/%s/resources", base, address)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := httpclient.Do(ctx, a.client, req, resp, a.def.RequestTimeout); err != nil {
		return entity.ChainBalances{}, httpclient.TransportError(ctx, requestURL, err)
	}

	out := entity.ChainBalances{NativeBalance: decimal.Zero}
	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		a.logger.Debug("Aptos account not found, treating as empty", "address", address)
		return out, nil
	case status != fasthttp.StatusOK:
		return entity.ChainBalances{}, fmt.Errorf("aptos resources %s: %w", address, httpclient.StatusError(status, resp.Body()))
	}

	var resources []aptosResource
	if err := json.Unmarshal(resp.Body(), &resources); err != nil {
		return entity.ChainBalances{}, fmt.Errorf("failed to decode aptos resources for %s: %v: %w", address, err, entity.ErrUpstreamUnavailable)
	}

	nativeFound := false
	for _, r := range resources {
		coinType, ok := coinStoreType(r.Type)
		if !ok {
			continue
		}
		raw, ok := new(big.Int).SetString(r.Data.Coin.Value, 10)
		if !ok {
			a.logger.Debug("Unparseable coin value", "coinType", coinType, "value", r.Data.Coin.Value)
			continue
		}

		if coinType == aptosCoinType {
			out.NativeBalance = decimal.NewFromBigInt(raw, -int32(a.def.Decimals))
			nativeFound = true
			continue
		}
		if raw.Sign() == 0 {
			continue
		}
		hint, known := a.hints[coinType]
		if !known {
			a.logger.Debug("Skipping coin type without token list entry", "coinType", coinType)
			continue
		}
		out.Tokens = append(out.Tokens, entity.RawToken{
			Identifier:   coinType,
			RawAmount:    raw,
			Decimals:     hint.Decimals,
			HintedSymbol: hint.Symbol,
			HintedName:   hint.Name,
		})
	}

	if !nativeFound {
		// Accounts migrated to fungible assets no longer expose an APT CoinStore.
		native, err := a.viewCoinBalance(ctx, base, address)
		if err != nil {
			return entity.ChainBalances{}, err
		}
		out.NativeBalance = native
	}
	return out, nil
}

// viewCoinBalance calls the 0x1::coin::balance view function for APT.
func (a *AptosAdapter) viewCoinBalance(ctx context.Context, base, address string) (decimal.Decimal, error) {
	body, err := json.Marshal(map[string]any{
		"function":       "0x1::coin::balance",
		"type_arguments": []string{aptosCoinType},
		"arguments":      []string{address},
	})
	if err != nil {
		return decimal.Zero, err
	}

	requestURL := base + "/view"
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := httpclient.Do(ctx, a.client, req, resp, a.def.RequestTimeout); err != nil {
		return decimal.Zero, httpclient.TransportError(ctx, requestURL, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return decimal.Zero, fmt.Errorf("aptos view balance %s: %w", address, httpclient.StatusError(resp.StatusCode(), resp.Body()))
	}

	var values []string
	if err := json.Unmarshal(resp.Body(), &values); err != nil || len(values) == 0 {
		return decimal.Zero, fmt.Errorf("unexpected aptos view response for %s: %w", address, entity.ErrUpstreamUnavailable)
	}
	raw, ok := new(big.Int).SetString(values[0], 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("unparseable aptos balance %q: %w", values[0], entity.ErrUpstreamUnavailable)
	}
	return decimal.NewFromBigInt(raw, -int32(a.def.Decimals)), nil
}

func coinStoreType(resourceType string) (string, bool) {
	if !strings.HasPrefix(resourceType, aptosCoinStorePref) || !strings.HasSuffix(resourceType, ">") {
		return "", false
	}
	return resourceType[len(aptosCoinStorePref) : len(resourceType)-1], true
}
