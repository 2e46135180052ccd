package client

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/pkg/logger"
)

const (
	solanaWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	jitoMint     = "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"
)

func tokenAccountJSON(mint, amount string, decimals int) map[string]any {
	return map[string]any{
		"pubkey": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		"account": map[string]any{
			"data": map[string]any{
				"program": "spl-token",
				"parsed": map[string]any{
					"type": "account",
					"info": map[string]any{
						"mint":  mint,
						"owner": solanaWallet,
						"tokenAmount": map[string]any{
							"amount":   amount,
							"decimals": decimals,
						},
					},
				},
				"space": 165,
			},
			"executable": false,
			"lamports":   2039280,
			"owner":      "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
			"rentEpoch":  0,
		},
	}
}

func TestSolanaAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = stdjson.NewDecoder(r.Body).Decode(&req)

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "getBalance":
			resp.Result = map[string]any{"context": map[string]any{"slot": 1}, "value": 1_500_000_000}
		case "getTokenAccountsByOwner":
			resp.Result = map[string]any{
				"context": map[string]any{"slot": 1},
				"value": []any{
					tokenAccountJSON(jitoMint, "2000000000", 9),
					tokenAccountJSON(jitoMint, "500000000", 9),
					tokenAccountJSON("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "0", 6),
				},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = stdjson.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	def := entity.ChainDefinition{
		Identifier:         "solana",
		Type:               entity.ChainTypeSolana,
		NativeSymbol:       "SOL",
		Decimals:           9,
		PrimaryRPCURL:      srv.URL,
		RateLimitPerSecond: 1000,
		Burst:              10,
		MaxRetries:         1,
		RetryDelay:         time.Millisecond,
		RequestTimeout:     2 * time.Second,
	}
	tokens := []entity.TokenInfo{{Address: jitoMint, Symbol: "JitoSOL", Name: "Jito Staked SOL", Decimals: 9}}
	adapter := NewSolanaAdapter(def, tokens, logger.NewNop())

	balances, err := adapter.Fetch(context.Background(), solanaWallet)
	require.NoError(t, err)

	assert.Equal(t, "1.5", balances.NativeBalance.String())
	require.Len(t, balances.Tokens, 1, "accounts of one mint are summed, empty accounts dropped")
	tok := balances.Tokens[0]
	assert.Equal(t, jitoMint, tok.Identifier)
	assert.Equal(t, "JitoSOL", tok.HintedSymbol)
	assert.Equal(t, int64(2_500_000_000), tok.RawAmount.Int64())
}

func TestSolanaAdapter_InvalidAddress(t *testing.T) {
	adapter := NewSolanaAdapter(entity.ChainDefinition{Identifier: "solana", PrimaryRPCURL: "http://127.0.0.1:1"}, nil, logger.NewNop())
	_, err := adapter.Fetch(context.Background(), "0xnot-base58")
	assert.ErrorIs(t, err, entity.ErrInvalidAddress)
}

func TestClassifySolanaError(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, classifySolanaError(ctx, "u", assert.AnError), entity.ErrUpstreamUnavailable)
	assert.ErrorIs(t, classifySolanaError(ctx, "u", &httpStatusErr{"429 Too Many Requests"}), entity.ErrRateLimited)
}

type httpStatusErr struct{ msg string }

func (e *httpStatusErr) Error() string { return e.msg }
