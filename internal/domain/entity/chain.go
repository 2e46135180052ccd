package entity

import "time"

// ChainType selects the adapter implementation for a chain.
type ChainType string

const (
	ChainTypeEVM    ChainType = "evm"
	ChainTypeSolana ChainType = "solana"
	ChainTypeAptos  ChainType = "aptos"
)

// ChainDefinition holds everything an adapter needs to talk to one chain.
type ChainDefinition struct {
	Identifier         string        `json:"identifier" yaml:"identifier"` // "ethereum", "solana", "aptos"
	Name               string        `json:"name" yaml:"name"`
	Type               ChainType     `json:"type" yaml:"type"`
	ChainID            uint64        `json:"chainId,omitempty" yaml:"chainId,omitempty"`
	NativeSymbol       string        `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals           uint8         `json:"decimals" yaml:"decimals"`
	PrimaryRPCURL      string        `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs    []string      `json:"fallbackRpcUrls" yaml:"fallbackRpcUrls"`
	BlockExplorerURL   string        `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	DEXScreenerChainID string        `json:"dexScreenerChainId,omitempty" yaml:"dexScreenerChainId,omitempty"`
	RateLimitPerSecond float64       `json:"-" yaml:"-"`
	Burst              int           `json:"-" yaml:"-"`
	MaxRetries         int           `json:"-" yaml:"-"`
	RetryDelay         time.Duration `json:"-" yaml:"-"`
	RequestTimeout     time.Duration `json:"-" yaml:"-"`
}
