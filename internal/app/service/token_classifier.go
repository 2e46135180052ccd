package service

import (
	"strings"
	"unicode"

	"portfolio_monitor/internal/domain/entity"
)

// Classification is the outcome of classifying one token observation.
type Classification struct {
	Category entity.TokenCategory
	Protocol string
	Symbol   string
	Name     string
}

// TokenClassifier maps raw token observations to categories.
// It is immutable after construction and safe for concurrent use.
type TokenClassifier struct {
	registry map[string]entity.RegistryEntry
}

// NewTokenClassifier indexes the built-in registry plus extra entries.
// Later entries override earlier ones for the same (chain, address).
func NewTokenClassifier(extra []entity.RegistryEntry) *TokenClassifier {
	c := &TokenClassifier{registry: make(map[string]entity.RegistryEntry)}
	for _, e := range BuiltinRegistry() {
		c.registry[registryKey(e.Chain, e.Address)] = e
	}
	for _, e := range extra {
		if e.Address == "" || e.Chain == "" {
			continue
		}
		if e.Category == "" {
			e.Category = entity.CategoryPlain
		}
		c.registry[registryKey(e.Chain, e.Address)] = e
	}
	return c
}

// Classify applies, first match wins: registry by identifier, liquidity
// keywords, staking keywords, then plain.
func (c *TokenClassifier) Classify(chain, symbol, name, identifier string) Classification {
	if identifier != "" {
		if e, ok := c.registry[registryKey(chain, identifier)]; ok {
			res := Classification{Category: e.Category, Protocol: e.Protocol, Symbol: e.Symbol, Name: e.Name}
			if res.Symbol == "" {
				res.Symbol = strings.ToUpper(symbol)
			}
			if res.Name == "" {
				res.Name = name
			}
			return res
		}
	}

	res := Classification{Category: entity.CategoryPlain, Symbol: strings.ToUpper(symbol), Name: name}
	text := strings.ToUpper(symbol + " " + name)

	if containsAnyMarker(text, liquidityMarkers) {
		res.Category = entity.CategoryLiquidity
		res.Protocol = protocolLiquidityPool
		return res
	}
	if isStakingDerivative(symbol, text) {
		res.Category = entity.CategoryStaking
		res.Protocol = protocolLiquidStaking
		return res
	}
	return res
}

// RegistrySize reports how many addresses are pinned.
func (c *TokenClassifier) RegistrySize() int {
	return len(c.registry)
}

// registryKey lowercases hex addresses; base58 mints are case-sensitive.
func registryKey(chain, address string) string {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		address = strings.ToLower(address)
	}
	return strings.ToLower(chain) + ":" + address
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsAnyMarker matches markers anywhere in the upper-cased text, so
// "sAMMV2-USDC/DAI" matches AMM.
func containsAnyMarker(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func isStakingDerivative(symbol, text string) bool {
	if _, ok := stakingSymbols[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return true
	}
	for _, w := range splitWords(text) {
		if _, ok := stakingSymbols[w]; ok {
			return true
		}
	}
	return containsAnyMarker(text, stakingMarkers)
}
