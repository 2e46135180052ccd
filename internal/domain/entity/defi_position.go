package entity

// PositionType groups DeFi tokens inside a protocol.
type PositionType string

const (
	PositionStaking   PositionType = "staking"
	PositionLiquidity PositionType = "liquidity"
	PositionLending   PositionType = "lending"
)

// LendingPosition aggregates collateral and debt for one (wallet, protocol) pair.
// HealthFactor is nil whenever TotalBorrowedUSD is zero.
type LendingPosition struct {
	Protocol             string         `json:"protocol"`
	Supplied             []TokenBalance `json:"supplied"`
	Borrowed             []TokenBalance `json:"borrowed"`
	TotalSuppliedUSD     float64        `json:"totalSuppliedUsd"`
	TotalBorrowedUSD     float64        `json:"totalBorrowedUsd"`
	NetWorthUSD          float64        `json:"netWorthUsd"`
	HealthFactor         *float64       `json:"healthFactor"`
	LiquidationThreshold float64        `json:"liquidationThreshold"`
	UnpricedSymbols      []string       `json:"unpricedSymbols,omitempty"`
}

// DeFiPosition is a staking, liquidity or lending position inside one protocol.
type DeFiPosition struct {
	Protocol      string           `json:"protocol"`
	PositionType  PositionType     `json:"positionType"`
	Tokens        []TokenBalance   `json:"tokens"`
	TotalUSDValue *float64         `json:"totalUsdValue"`
	Lending       *LendingPosition `json:"lending,omitempty"`
}

// ContributionUSD is what the position adds to a wallet total:
// net worth for lending, the priced token sum otherwise.
func (p DeFiPosition) ContributionUSD() float64 {
	if p.Lending != nil {
		return p.Lending.NetWorthUSD
	}
	if p.TotalUSDValue != nil {
		return *p.TotalUSDValue
	}
	return 0
}
