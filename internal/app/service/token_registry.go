package service

import "portfolio_monitor/internal/domain/entity"

const (
	protocolLiquidityPool = "Liquidity Pool"
	protocolLiquidStaking = "Liquid Staking"
	protocolAaveV3        = "Aave V3"
)

// BuiltinRegistry returns the addresses known without any registry file.
// Aave receipt and debt tokens carry the underlying symbol so they price like the asset.
func BuiltinRegistry() []entity.RegistryEntry {
	return []entity.RegistryEntry{
		// Solana liquid staking
		{Chain: "solana", Address: "jupSoLaHXQiZZTSfEWMTRRgpnyFm8f6sZdosWBjx93v", Symbol: "JUPSOL", Name: "Jupiter Staked SOL", Protocol: "Jupiter", Category: entity.CategoryStaking},
		{Chain: "solana", Address: "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn", Symbol: "JITOSOL", Name: "Jito Staked SOL", Protocol: "Jito", Category: entity.CategoryStaking},
		{Chain: "solana", Address: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", Symbol: "MSOL", Name: "Marinade staked SOL", Protocol: "Marinade", Category: entity.CategoryStaking},

		// Ethereum liquid staking
		{Chain: "ethereum", Address: "0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84", Symbol: "STETH", Name: "Lido Staked ETH", Protocol: "Lido", Category: entity.CategoryStaking},
		{Chain: "ethereum", Address: "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0", Symbol: "WSTETH", Name: "Wrapped liquid staked Ether 2.0", Protocol: "Lido", Category: entity.CategoryStaking},
		{Chain: "ethereum", Address: "0xae78736Cd615f374D3085123A210448E74Fc6393", Symbol: "RETH", Name: "Rocket Pool ETH", Protocol: "Rocket Pool", Category: entity.CategoryStaking},

		// Aave V3 Ethereum market
		{Chain: "ethereum", Address: "0x4d5F47FA6A74757f35C14fD3a6Ef8E3C9BC514E8", Symbol: "WETH", Name: "Aave Ethereum WETH", Protocol: protocolAaveV3, Category: entity.CategoryLendingCollateral},
		{Chain: "ethereum", Address: "0x98C23E9d8f34FEFb1B7BD6a91B7FF122F4e16F5c", Symbol: "USDC", Name: "Aave Ethereum USDC", Protocol: protocolAaveV3, Category: entity.CategoryLendingCollateral},
		{Chain: "ethereum", Address: "0x72E95b8931767C79bA4EeE721354d6E99a61D004", Symbol: "USDC", Name: "Aave Ethereum Variable Debt USDC", Protocol: protocolAaveV3, Category: entity.CategoryLendingDebt},
		{Chain: "ethereum", Address: "0xeA51d7853EEFb32b6ee06b1C12E6dcCA88Be0fFE", Symbol: "WETH", Name: "Aave Ethereum Variable Debt WETH", Protocol: protocolAaveV3, Category: entity.CategoryLendingDebt},
	}
}

// stakingSymbols are liquid staking derivatives recognised by symbol alone.
var stakingSymbols = map[string]struct{}{
	"STETH":   {},
	"WSTETH":  {},
	"RETH":    {},
	"CBETH":   {},
	"MSOL":    {},
	"JITOSOL": {},
	"JUPSOL":  {},
	"BSOL":    {},
	"STSOL":   {},
	"STAPT":   {},
	"AMAPT":   {},
}

var (
	liquidityMarkers = []string{"LP", "AMM", "POOL"}
	stakingMarkers   = []string{"STAKED", "STAKING"}
)
