package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// parsedTokenAccount is the jsonParsed shape of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// SolanaAdapter implements port.ChainAdapter for Solana: SOL plus SPL token accounts.
type SolanaAdapter struct {
	def     entity.ChainDefinition
	clients []*rpc.Client
	urls    []string
	hints   map[string]entity.TokenInfo // by mint
	policy  *RetryPolicy
	logger  port.Logger
}

// NewSolanaAdapter creates an adapter for def. tokens only supply symbol and name hints.
func NewSolanaAdapter(def entity.ChainDefinition, tokens []entity.TokenInfo, log port.Logger) *SolanaAdapter {
	a := &SolanaAdapter{
		def:    def,
		hints:  make(map[string]entity.TokenInfo, len(tokens)),
		policy: NewRetryPolicy(def),
		logger: log.With("chain", def.Identifier),
	}
	for _, url := range append([]string{def.PrimaryRPCURL}, def.FallbackRPCURLs...) {
		if url == "" {
			continue
		}
		a.urls = append(a.urls, url)
		a.clients = append(a.clients, rpc.New(url))
	}
	for _, t := range tokens {
		a.hints[t.Address] = t
	}
	return a
}

// Definition returns the chain definition for this adapter.
func (a *SolanaAdapter) Definition() entity.ChainDefinition {
	return a.def
}

// Fetch returns the SOL balance and every non-empty SPL token holding, summed per mint.
func (a *SolanaAdapter) Fetch(ctx context.Context, address string) (entity.ChainBalances, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return entity.ChainBalances{}, fmt.Errorf("solana address %q: %v: %w", address, err, entity.ErrInvalidAddress)
	}

	var out entity.ChainBalances
	err = a.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.fetchWithFallback(ctx, owner)
		return callErr
	})
	return out, err
}

func (a *SolanaAdapter) fetchWithFallback(ctx context.Context, owner solana.PublicKey) (entity.ChainBalances, error) {
	lastErr := fmt.Errorf("no RPC endpoints configured for %s: %w", a.def.Identifier, entity.ErrUpstreamUnavailable)
	for i, client := range a.clients {
		balances, err := a.fetchFrom(ctx, client, owner)
		if err == nil {
			return balances, nil
		}
		lastErr = classifySolanaError(ctx, a.urls[i], err)
		if ctx.Err() != nil {
			break
		}
		a.logger.Warn("Solana RPC call failed, trying next endpoint", "rpc", a.urls[i], "error", err)
	}
	return entity.ChainBalances{}, lastErr
}

func (a *SolanaAdapter) fetchFrom(ctx context.Context, client *rpc.Client, owner solana.PublicKey) (entity.ChainBalances, error) {
	callCtx := ctx
	if a.def.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.def.RequestTimeout)
		defer cancel()
	}

	balance, err := client.GetBalance(callCtx, owner, rpc.CommitmentFinalized)
	if err != nil {
		return entity.ChainBalances{}, fmt.Errorf("getBalance: %w", err)
	}

	accounts, err := client.GetTokenAccountsByOwner(callCtx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return entity.ChainBalances{}, fmt.Errorf("getTokenAccountsByOwner: %w", err)
	}

	out := entity.ChainBalances{
		NativeBalance: decimal.NewFromBigInt(new(big.Int).SetUint64(balance.Value), -int32(a.def.Decimals)),
	}

	byMint := make(map[string]int)
	for _, acc := range accounts.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		var parsed parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
			a.logger.Debug("Skipping token account with unexpected data", "account", acc.Pubkey.String(), "error", err)
			continue
		}
		info := parsed.Parsed.Info
		amount, ok := new(big.Int).SetString(info.TokenAmount.Amount, 10)
		if !ok || amount.Sign() == 0 || info.Mint == "" {
			continue
		}

		if idx, seen := byMint[info.Mint]; seen {
			out.Tokens[idx].RawAmount = new(big.Int).Add(out.Tokens[idx].RawAmount, amount)
			continue
		}
		hint := a.hints[info.Mint]
		byMint[info.Mint] = len(out.Tokens)
		out.Tokens = append(out.Tokens, entity.RawToken{
			Identifier:   info.Mint,
			RawAmount:    amount,
			Decimals:     info.TokenAmount.Decimals,
			HintedSymbol: hint.Symbol,
			HintedName:   hint.Name,
		})
	}
	return out, nil
}

// classifySolanaError maps solana-go RPC failures onto domain sentinels.
// The client exposes HTTP status only through the error text.
func classifySolanaError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rpc %s: %w", url, ctxErr)
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "Too Many Requests") {
		return fmt.Errorf("rpc %s: %w", url, entity.ErrRateLimited)
	}
	return fmt.Errorf("rpc %s: %v: %w", url, err, entity.ErrUpstreamUnavailable)
}
