package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a configured address to monitor.
type Wallet struct {
	Chain   string `json:"chain" yaml:"chain"`
	Address string `json:"address" yaml:"address"`
	Label   string `json:"label" yaml:"label"`
}

// Key identifies a wallet across cycles.
func (w Wallet) Key() string {
	return strings.ToLower(w.Chain) + ":" + strings.ToLower(w.Address)
}

// WalletSnapshot is one chain address at one point in time.
// Tokens only ever holds CategoryPlain balances; everything else lives in DeFiPositions.
type WalletSnapshot struct {
	Chain          string          `json:"chain"`
	Address        string          `json:"address"`
	Label          string          `json:"label"`
	NativeSymbol   string          `json:"nativeSymbol"`
	NativeBalance  decimal.Decimal `json:"nativeBalance"`
	NativeUSDValue *float64        `json:"nativeUsdValue"`
	Tokens         []TokenBalance  `json:"tokens"`
	DeFiPositions  []DeFiPosition  `json:"defiPositions"`
	TotalUSDValue  float64         `json:"totalUsdValue"`
	ObservedAt     time.Time       `json:"observedAt"`
}

// Wallet returns the identity of the snapshot.
func (w WalletSnapshot) Wallet() Wallet {
	return Wallet{Chain: w.Chain, Address: w.Address, Label: w.Label}
}

// PortfolioSnapshot is the published state of every wallet at one instant.
type PortfolioSnapshot struct {
	CycleID              string           `json:"cycleId"`
	Wallets              []WalletSnapshot `json:"wallets"`
	TotalUSDValue        float64          `json:"totalUsdValue"`
	TotalDefiSuppliedUSD float64          `json:"totalDefiSuppliedUsd"`
	TotalDefiDebtUSD     float64          `json:"totalDefiDebtUsd"`
	PartialFailures      []PortfolioError `json:"partialFailures,omitempty"`
	GeneratedAt          time.Time        `json:"generatedAt"`
}

// FindWallet matches chain and address case-insensitively.
func (p *PortfolioSnapshot) FindWallet(chain, address string) (*WalletSnapshot, bool) {
	for i := range p.Wallets {
		w := &p.Wallets[i]
		if strings.EqualFold(w.Chain, chain) && strings.EqualFold(w.Address, address) {
			return w, true
		}
	}
	return nil, false
}

// PortfolioSummary is the dashboard view of a snapshot.
type PortfolioSummary struct {
	TotalUSDValue  float64            `json:"totalUsdValue"`
	TotalDefiValue float64            `json:"totalDefiValue"`
	TotalDebtValue float64            `json:"totalDebtValue"`
	NetWorth       float64            `json:"netWorth"`
	Chains         map[string]float64 `json:"chains"`
	WalletCount    int                `json:"walletCount"`
	FailureCount   int                `json:"failureCount"`
	LastUpdated    time.Time          `json:"lastUpdated"`
}

// Summary folds wallet totals per chain.
func (p *PortfolioSnapshot) Summary() PortfolioSummary {
	chains := make(map[string]float64)
	for _, w := range p.Wallets {
		chains[w.Chain] += w.TotalUSDValue
	}
	return PortfolioSummary{
		TotalUSDValue:  p.TotalUSDValue,
		TotalDefiValue: p.TotalDefiSuppliedUSD,
		TotalDebtValue: p.TotalDefiDebtUSD,
		NetWorth:       p.TotalUSDValue,
		Chains:         chains,
		WalletCount:    len(p.Wallets),
		FailureCount:   len(p.PartialFailures),
		LastUpdated:    p.GeneratedAt,
	}
}
