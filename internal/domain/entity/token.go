package entity

import (
	"fmt"
	"math/big"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenCategory is the semantic class a holding is sorted into.
type TokenCategory string

const (
	CategoryPlain             TokenCategory = "plain"
	CategoryStaking           TokenCategory = "staking"
	CategoryLiquidity         TokenCategory = "liquidity"
	CategoryLendingCollateral TokenCategory = "lendingCollateral"
	CategoryLendingDebt       TokenCategory = "lendingDebt"
)

// ParseTokenCategory accepts the canonical names case-insensitively.
func ParseTokenCategory(s string) (TokenCategory, error) {
	for _, c := range []TokenCategory{CategoryPlain, CategoryStaking, CategoryLiquidity, CategoryLendingCollateral, CategoryLendingDebt} {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown token category %q", s)
}

// IsDeFi reports whether tokens of this category belong in a DeFi position.
func (c TokenCategory) IsDeFi() bool {
	return c != CategoryPlain && c != ""
}

// IsLending reports whether the category is collateral or debt.
func (c TokenCategory) IsLending() bool {
	return c == CategoryLendingCollateral || c == CategoryLendingDebt
}

// PositionType is the DeFi position a category rolls up into.
func (c TokenCategory) PositionType() PositionType {
	switch c {
	case CategoryStaking:
		return PositionStaking
	case CategoryLiquidity:
		return PositionLiquidity
	case CategoryLendingCollateral, CategoryLendingDebt:
		return PositionLending
	default:
		return ""
	}
}

// TokenInfo is one entry of a per-chain token list file.
type TokenInfo struct {
	Chain    string `json:"chain"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// RegistryEntry pins a contract or mint address to a known protocol and category.
type RegistryEntry struct {
	Chain    string        `json:"chain" yaml:"chain"`
	Address  string        `json:"address" yaml:"address"`
	Symbol   string        `json:"symbol" yaml:"symbol"`
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	Protocol string        `json:"protocol" yaml:"protocol"`
	Category TokenCategory `json:"category" yaml:"category"`
}

// RawToken is a holding as reported by a chain adapter, before classification.
type RawToken struct {
	Identifier   string
	RawAmount    *big.Int
	Decimals     uint8
	HintedSymbol string
	HintedName   string
}

// ChainBalances is the result of a single adapter fetch.
type ChainBalances struct {
	NativeBalance decimal.Decimal
	Tokens        []RawToken
}

// TokenBalance is a single fungible holding after classification.
// Debt is stored as a positive quantity; the sign is implied by Category.
type TokenBalance struct {
	Symbol      string        `json:"symbol"`
	DisplayName string        `json:"name"`
	RawAmount   *big.Int      `json:"-"`
	Decimals    uint8         `json:"decimals"`
	Address     string        `json:"address,omitempty"`
	Category    TokenCategory `json:"category"`
	Protocol    string        `json:"protocol,omitempty"`
	USDValue    *float64      `json:"usdValue"`
}

// Amount is always RawAmount / 10^Decimals.
func (t TokenBalance) Amount() decimal.Decimal {
	if t.RawAmount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(t.RawAmount, -int32(t.Decimals))
}

// WithPrice returns a copy with USDValue set from price.
func (t TokenBalance) WithPrice(price float64) TokenBalance {
	v := t.Amount().InexactFloat64() * price
	t.USDValue = &v
	return t
}

func (t TokenBalance) MarshalJSON() ([]byte, error) {
	type alias TokenBalance
	return json.Marshal(struct {
		alias
		Amount decimal.Decimal `json:"amount"`
	}{alias: alias(t), Amount: t.Amount()})
}
