package provider

import (
	"strings"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/tokenloader"
)

type tokenProviderImpl struct {
	tokensByChain map[string][]entity.TokenInfo
	registry      []entity.RegistryEntry
}

// NewTokenProvider loads token lists for chains and the optional registry file up front.
// A broken registry file is fatal; broken token list files are skipped with a warning.
func NewTokenProvider(tokenDir, registryFile string, chains []string, logger port.Logger) (port.TokenProvider, error) {
	tokens, err := tokenloader.LoadTokenLists(tokenDir, chains, logger.Warn)
	if err != nil {
		logger.Error("Failed to load tokens", "directory", tokenDir, "error", err)
		return nil, err
	}

	registry, err := tokenloader.LoadRegistry(registryFile)
	if err != nil {
		logger.Error("Failed to load token registry", "path", registryFile, "error", err)
		return nil, err
	}

	total := 0
	for _, list := range tokens {
		total += len(list)
	}
	logger.Info("Tokens loaded and cached successfully",
		"chains_with_tokens", len(tokens), "tokens", total, "registry_entries", len(registry))

	return &tokenProviderImpl{tokensByChain: tokens, registry: registry}, nil
}

func (p *tokenProviderImpl) GetTokens(chain string) []entity.TokenInfo {
	return p.tokensByChain[strings.ToLower(chain)]
}

func (p *tokenProviderImpl) GetRegistry() []entity.RegistryEntry {
	return p.registry
}
