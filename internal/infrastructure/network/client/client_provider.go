package client

import (
	"fmt"
	"strings"
	"sync"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
)

type closer interface {
	Close()
}

// AdapterProvider implements port.ChainAdapterProvider.
type AdapterProvider struct {
	definitions port.ChainDefinitionProvider
	tokens      port.TokenProvider
	logger      port.Logger

	mu       sync.Mutex
	adapters map[string]port.ChainAdapter
}

// NewAdapterProvider creates a provider that builds one adapter per chain on first use.
func NewAdapterProvider(definitions port.ChainDefinitionProvider, tokens port.TokenProvider, log port.Logger) *AdapterProvider {
	return &AdapterProvider{
		definitions: definitions,
		tokens:      tokens,
		logger:      log,
		adapters:    make(map[string]port.ChainAdapter),
	}
}

// GetAdapter returns the cached adapter for chain, creating it if needed.
func (p *AdapterProvider) GetAdapter(chain string) (port.ChainAdapter, error) {
	key := strings.ToLower(chain)

	p.mu.Lock()
	defer p.mu.Unlock()

	if adapter, exists := p.adapters[key]; exists {
		return adapter, nil
	}

	def, ok := p.definitions.GetChainDefinition(key)
	if !ok {
		return nil, fmt.Errorf("chain %q: %w", chain, entity.ErrUnsupportedChain)
	}

	tokens := p.tokens.GetTokens(key)
	var adapter port.ChainAdapter
	switch def.Type {
	case entity.ChainTypeEVM:
		adapter = NewEVMAdapter(def, tokens, p.logger)
	case entity.ChainTypeSolana:
		adapter = NewSolanaAdapter(def, tokens, p.logger)
	case entity.ChainTypeAptos:
		adapter = NewAptosAdapter(def, tokens, p.logger)
	default:
		return nil, fmt.Errorf("chain %q has type %q: %w", chain, def.Type, entity.ErrUnsupportedChain)
	}

	p.adapters[key] = adapter
	p.logger.Info("Created chain adapter", "chain", def.Identifier, "type", def.Type, "tokens", len(tokens), "rpc_primary", def.PrimaryRPCURL)
	return adapter, nil
}

// Close releases network resources held by cached adapters.
func (p *AdapterProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for chain, adapter := range p.adapters {
		if c, ok := adapter.(closer); ok {
			c.Close()
		}
		delete(p.adapters, chain)
	}
}
