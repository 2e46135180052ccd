package networkdefinition

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
)

// Default per-chain request policy.
const (
	DefaultRateLimitPerSecond = 5.0
	DefaultBurst              = 5
	DefaultMaxRetries         = 3
	DefaultRetryDelay         = 500 * time.Millisecond
	DefaultRequestTimeout     = 15 * time.Second
)

// ChainDefinitionProvider provides chain definitions.
type ChainDefinitionProvider struct {
	logger          port.Logger
	allChainDefs    map[string]entity.ChainDefinition
	activeChainDefs []entity.ChainDefinition
}

// Predefined chain definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.ChainDefinition{
		ChainID:            1,
		Name:               "Ethereum Mainnet",
		Identifier:         "ethereum",
		Type:               entity.ChainTypeEVM,
		NativeSymbol:       "ETH",
		Decimals:           18,
		PrimaryRPCURL:      "https://ethereum-rpc.publicnode.com",
		FallbackRPCURLs:    []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
		BlockExplorerURL:   "https://etherscan.io",
		DEXScreenerChainID: "ethereum",
	}
	BSC = entity.ChainDefinition{
		ChainID:            56,
		Name:               "BNB Smart Chain",
		Identifier:         "bsc",
		Type:               entity.ChainTypeEVM,
		NativeSymbol:       "BNB",
		Decimals:           18,
		PrimaryRPCURL:      "https://1rpc.io/bnb",
		FallbackRPCURLs:    []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL:   "https://bscscan.com",
		DEXScreenerChainID: "bsc",
	}
	Polygon = entity.ChainDefinition{
		ChainID:            137,
		Name:               "Polygon PoS",
		Identifier:         "polygon",
		Type:               entity.ChainTypeEVM,
		NativeSymbol:       "POL",
		Decimals:           18,
		PrimaryRPCURL:      "https://polygon-rpc.com/",
		FallbackRPCURLs:    []string{"https://polygon.publicnode.com"},
		BlockExplorerURL:   "https://polygonscan.com",
		DEXScreenerChainID: "polygon",
	}
	Arbitrum = entity.ChainDefinition{
		ChainID:            42161,
		Name:               "Arbitrum One",
		Identifier:         "arbitrum",
		Type:               entity.ChainTypeEVM,
		NativeSymbol:       "ETH",
		Decimals:           18,
		PrimaryRPCURL:      "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs:    []string{"https://arbitrum.publicnode.com"},
		BlockExplorerURL:   "https://arbiscan.io",
		DEXScreenerChainID: "arbitrum",
	}
	Base = entity.ChainDefinition{
		ChainID:            8453,
		Name:               "Base",
		Identifier:         "base",
		Type:               entity.ChainTypeEVM,
		NativeSymbol:       "ETH",
		Decimals:           18,
		PrimaryRPCURL:      "https://mainnet.base.org",
		FallbackRPCURLs:    []string{"https://base.publicnode.com"},
		BlockExplorerURL:   "https://basescan.org",
		DEXScreenerChainID: "base",
	}
	Optimism = entity.ChainDefinition{
		ChainID:            10,
		Name:               "OP Mainnet",
		Identifier:         "optimism",
		Type:               entity.ChainTypeEVM,
		NativeSymbol:       "ETH",
		Decimals:           18,
		PrimaryRPCURL:      "https://mainnet.optimism.io",
		FallbackRPCURLs:    []string{"https://optimism.publicnode.com"},
		BlockExplorerURL:   "https://optimistic.etherscan.io",
		DEXScreenerChainID: "optimism",
	}
	Solana = entity.ChainDefinition{
		Name:               "Solana Mainnet",
		Identifier:         "solana",
		Type:               entity.ChainTypeSolana,
		NativeSymbol:       "SOL",
		Decimals:           9,
		PrimaryRPCURL:      "https://api.mainnet-beta.solana.com",
		BlockExplorerURL:   "https://solscan.io",
		DEXScreenerChainID: "solana",
	}
	Aptos = entity.ChainDefinition{
		Name:               "Aptos Mainnet",
		Identifier:         "aptos",
		Type:               entity.ChainTypeAptos,
		NativeSymbol:       "APT",
		Decimals:           8,
		PrimaryRPCURL:      "https://fullnode.mainnet.aptoslabs.com/v1",
		BlockExplorerURL:   "https://explorer.aptoslabs.com",
		DEXScreenerChainID: "aptos",
	}
)

// allKnownDefinitions is a helper to quickly access all hardcoded definitions.
var allKnownDefinitions = map[string]entity.ChainDefinition{
	Ethereum.Identifier: Ethereum,
	BSC.Identifier:      BSC,
	Polygon.Identifier:  Polygon,
	Arbitrum.Identifier: Arbitrum,
	Base.Identifier:     Base,
	Optimism.Identifier: Optimism,
	Solana.Identifier:   Solana,
	Aptos.Identifier:    Aptos,
}

// NewChainDefinitionProvider merges config overrides into the built-in definitions and
// activates the chains named in activeChains. With no active chains every known chain is active.
func NewChainDefinitionProvider(log port.Logger, overrides []configloader.ChainConfig, activeChains []string) *ChainDefinitionProvider {
	p := &ChainDefinitionProvider{
		logger:       log,
		allChainDefs: make(map[string]entity.ChainDefinition, len(allKnownDefinitions)),
	}
	for id, def := range allKnownDefinitions {
		p.allChainDefs[id] = withDefaultPolicy(def)
	}

	for _, o := range overrides {
		id := strings.ToLower(strings.TrimSpace(o.Name))
		def, ok := p.allChainDefs[id]
		if !ok {
			p.logger.Warn(fmt.Sprintf("Chain override for '%s' has no corresponding built-in definition. Skipping.", o.Name))
			continue
		}
		p.allChainDefs[id] = applyOverride(def, o)
		p.logger.Debug("Applied chain override", "chain", id, "rpc", p.allChainDefs[id].PrimaryRPCURL)
	}

	if len(activeChains) == 0 {
		for id := range p.allChainDefs {
			activeChains = append(activeChains, id)
		}
	}

	activeIdentifiers := make(map[string]struct{})
	for _, raw := range activeChains {
		id := strings.ToLower(strings.TrimSpace(raw))
		if _, alreadyActive := activeIdentifiers[id]; alreadyActive {
			continue
		}
		def, ok := p.allChainDefs[id]
		if !ok {
			p.logger.Warn(fmt.Sprintf("Chain '%s' is referenced but no definition exists. Wallets on it will fail as unsupported.", raw))
			continue
		}
		p.activeChainDefs = append(p.activeChainDefs, def)
		activeIdentifiers[id] = struct{}{}
	}
	sort.Slice(p.activeChainDefs, func(i, j int) bool {
		return p.activeChainDefs[i].Identifier < p.activeChainDefs[j].Identifier
	})

	p.logger.Info(fmt.Sprintf("ChainDefinitionProvider initialized. Active chains: %d", len(p.activeChainDefs)))
	for _, def := range p.activeChainDefs {
		p.logger.Debug(fmt.Sprintf("  - Active chain: %s (ID: %s, type: %s)", def.Name, def.Identifier, def.Type))
	}
	return p
}

// GetAllChainDefinitions returns the active chain definitions.
func (p *ChainDefinitionProvider) GetAllChainDefinitions() []entity.ChainDefinition {
	if p == nil {
		return []entity.ChainDefinition{}
	}
	defsCopy := make([]entity.ChainDefinition, len(p.activeChainDefs))
	copy(defsCopy, p.activeChainDefs)
	return defsCopy
}

// GetChainDefinition returns an active chain definition by identifier.
func (p *ChainDefinitionProvider) GetChainDefinition(identifier string) (entity.ChainDefinition, bool) {
	if p == nil {
		return entity.ChainDefinition{}, false
	}
	identifier = strings.ToLower(identifier)
	for _, def := range p.activeChainDefs {
		if def.Identifier == identifier {
			return def, true
		}
	}
	return entity.ChainDefinition{}, false
}

func withDefaultPolicy(def entity.ChainDefinition) entity.ChainDefinition {
	def.RateLimitPerSecond = DefaultRateLimitPerSecond
	def.Burst = DefaultBurst
	def.MaxRetries = DefaultMaxRetries
	def.RetryDelay = DefaultRetryDelay
	def.RequestTimeout = DefaultRequestTimeout
	def.FallbackRPCURLs = append([]string(nil), def.FallbackRPCURLs...)
	return def
}

func applyOverride(def entity.ChainDefinition, o configloader.ChainConfig) entity.ChainDefinition {
	if o.RPCURL != "" {
		def.PrimaryRPCURL = o.RPCURL
	}
	if o.FallbackRPCURLs != nil {
		def.FallbackRPCURLs = append([]string(nil), o.FallbackRPCURLs...)
	}
	if o.RateLimitPerSecond > 0 {
		def.RateLimitPerSecond = o.RateLimitPerSecond
	}
	if o.Burst > 0 {
		def.Burst = o.Burst
	}
	if o.MaxRetries > 0 {
		def.MaxRetries = o.MaxRetries
	}
	if o.RetryDelayMillis > 0 {
		def.RetryDelay = time.Duration(o.RetryDelayMillis) * time.Millisecond
	}
	if o.RequestTimeoutMillis > 0 {
		def.RequestTimeout = time.Duration(o.RequestTimeoutMillis) * time.Millisecond
	}
	return def
}
