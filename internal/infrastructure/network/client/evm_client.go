package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
)

// maxBatchSize caps the number of calls in a single JSON-RPC batch.
const maxBatchSize = 100

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOfMethod, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		erc20MethodID = balanceOfMethod.ID
	})
}

// EVMAdapter implements port.ChainAdapter for EVM-compatible chains.
// Every fetch is one batch of eth_getBalance plus an eth_call balanceOf per listed token.
type EVMAdapter struct {
	def    entity.ChainDefinition
	tokens []entity.TokenInfo
	policy *RetryPolicy
	logger port.Logger

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// NewEVMAdapter creates an adapter for def, querying balances of the given token list.
func NewEVMAdapter(def entity.ChainDefinition, tokens []entity.TokenInfo, log port.Logger) *EVMAdapter {
	initParsedERC20ABI()
	valid := make([]entity.TokenInfo, 0, len(tokens))
	for _, t := range tokens {
		if common.IsHexAddress(t.Address) {
			valid = append(valid, t)
			continue
		}
		log.Warn("Skipping token with malformed contract address", "chain", def.Identifier, "symbol", t.Symbol, "address", t.Address)
	}
	return &EVMAdapter{
		def:     def,
		tokens:  valid,
		policy:  NewRetryPolicy(def),
		logger:  log.With("chain", def.Identifier),
		clients: make(map[string]*ethclient.Client),
	}
}

// Definition returns the chain definition for this adapter.
func (a *EVMAdapter) Definition() entity.ChainDefinition {
	return a.def
}

// Fetch returns the native balance and every non-zero listed token balance of address.
func (a *EVMAdapter) Fetch(ctx context.Context, address string) (entity.ChainBalances, error) {
	if !common.IsHexAddress(address) {
		return entity.ChainBalances{}, fmt.Errorf("%s address %q: %w", a.def.Identifier, address, entity.ErrInvalidAddress)
	}

	requests := make([]entity.BalanceRequestItem, 0, len(a.tokens)+1)
	requests = append(requests, entity.BalanceRequestItem{Type: entity.NativeBalanceRequest, WalletAddress: address})
	for _, t := range a.tokens {
		requests = append(requests, entity.BalanceRequestItem{Type: entity.TokenBalanceRequest, WalletAddress: address, Token: t})
	}

	var results []entity.BalanceResultItem
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		results, callErr = a.getBalancesWithFallback(ctx, requests)
		return callErr
	})
	if err != nil {
		return entity.ChainBalances{}, err
	}

	native := results[0]
	if native.Error != nil {
		return entity.ChainBalances{}, fmt.Errorf("native balance on %s: %v: %w", a.def.Identifier, native.Error, entity.ErrUpstreamUnavailable)
	}

	out := entity.ChainBalances{
		NativeBalance: decimal.NewFromBigInt(native.Balance, -int32(a.def.Decimals)),
	}
	for _, r := range results[1:] {
		if r.Error != nil {
			a.logger.Debug("Token balance call failed, skipping", "symbol", r.Request.Token.Symbol, "error", r.Error)
			continue
		}
		if r.Balance == nil || r.Balance.Sign() == 0 {
			continue
		}
		out.Tokens = append(out.Tokens, entity.RawToken{
			Identifier:   r.Request.Token.Address,
			RawAmount:    r.Balance,
			Decimals:     r.Request.Token.Decimals,
			HintedSymbol: r.Request.Token.Symbol,
			HintedName:   r.Request.Token.Name,
		})
	}
	return out, nil
}

// getBalancesWithFallback tries the primary RPC, then each fallback, on transport failure.
func (a *EVMAdapter) getBalancesWithFallback(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	urls := append([]string{a.def.PrimaryRPCURL}, a.def.FallbackRPCURLs...)
	var lastErr error
	for _, url := range urls {
		if url == "" {
			continue
		}
		client, err := a.client(ctx, url)
		if err != nil {
			lastErr = fmt.Errorf("failed to connect to RPC %s: %v: %w", url, err, entity.ErrUpstreamUnavailable)
			continue
		}
		results, err := a.GetBalances(ctx, client, requests)
		if err == nil {
			return results, nil
		}
		lastErr = classifyRPCError(ctx, url, err)
		if ctx.Err() != nil {
			return nil, lastErr
		}
		a.logger.Warn("RPC batch call failed, trying next endpoint", "rpc", url, "error", err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC endpoints configured for %s: %w", a.def.Identifier, entity.ErrUpstreamUnavailable)
	}
	return nil, lastErr
}

func (a *EVMAdapter) client(ctx context.Context, url string) (*ethclient.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[url]; ok {
		return c, nil
	}
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	a.clients[url] = c
	return c, nil
}

// Close releases every dialed RPC client.
func (a *EVMAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for url, c := range a.clients {
		c.Close()
		delete(a.clients, url)
	}
}

// GetBalances fetches multiple balances using JSON-RPC batch requests.
// Per-element failures are reported in the result items; the error covers the batch transport only.
func (a *EVMAdapter) GetBalances(ctx context.Context, client *ethclient.Client, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	results := make([]entity.BalanceResultItem, len(requests))
	if len(requests) == 0 {
		return results, nil
	}

	callCtx := ctx
	if a.def.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.def.RequestTimeout)
		defer cancel()
	}

	for start := 0; start < len(requests); start += maxBatchSize {
		end := min(start+maxBatchSize, len(requests))
		chunk := requests[start:end]

		batchElems := make([]rpc.BatchElem, len(chunk))
		for i, reqItem := range chunk {
			results[start+i].Request = reqItem
			batchElems[i] = buildBatchElem(reqItem)
		}

		if err := client.Client().BatchCallContext(callCtx, batchElems); err != nil {
			return results, fmt.Errorf("RPC batch call failed: %w", err)
		}

		for i, elem := range batchElems {
			res := &results[start+i]
			if elem.Error != nil {
				res.Error = elem.Error
				continue
			}
			res.Balance, res.Error = decodeBatchResult(chunk[i], elem.Result)
		}
	}
	return results, nil
}

func buildBatchElem(reqItem entity.BalanceRequestItem) rpc.BatchElem {
	owner := common.HexToAddress(reqItem.WalletAddress)
	if reqItem.Type == entity.NativeBalanceRequest {
		return rpc.BatchElem{
			Method: "eth_getBalance",
			Args:   []interface{}{owner, "latest"},
			Result: new(hexutil.Big),
		}
	}

	callData := make([]byte, 0, len(erc20MethodID)+32)
	callData = append(callData, erc20MethodID...)
	callData = append(callData, common.LeftPadBytes(owner.Bytes(), 32)...)
	callArgs := map[string]interface{}{
		"to":   common.HexToAddress(reqItem.Token.Address),
		"data": hexutil.Bytes(callData),
	}
	return rpc.BatchElem{
		Method: "eth_call",
		Args:   []interface{}{callArgs, "latest"},
		Result: new(hexutil.Bytes),
	}
}

func decodeBatchResult(reqItem entity.BalanceRequestItem, result interface{}) (*big.Int, error) {
	switch r := result.(type) {
	case *hexutil.Big:
		if r == nil {
			return nil, errors.New("nil native balance")
		}
		return (*big.Int)(r), nil
	case *hexutil.Bytes:
		if r == nil || len(*r) == 0 {
			return big.NewInt(0), nil
		}
		unpacked, err := parsedERC20ABI.Unpack("balanceOf", *r)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack balanceOf result for %s: %w. Raw: %s", reqItem.Token.Symbol, err, hexutil.Encode(*r))
		}
		if len(unpacked) == 0 {
			return nil, fmt.Errorf("balanceOf unpack returned no data for %s", reqItem.Token.Symbol)
		}
		balance, ok := unpacked[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected balanceOf result type for %s: %T", reqItem.Token.Symbol, unpacked[0])
		}
		return balance, nil
	default:
		return nil, fmt.Errorf("unexpected batch result type %T", result)
	}
}

// classifyRPCError maps go-ethereum transport failures onto domain sentinels.
func classifyRPCError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rpc %s: %w", url, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("rpc %s: %v: %w", url, err, entity.ErrUpstreamUnavailable)
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rpc %s: %w", url, entity.ErrRateLimited)
	}
	return fmt.Errorf("rpc %s: %v: %w", url, err, entity.ErrUpstreamUnavailable)
}
