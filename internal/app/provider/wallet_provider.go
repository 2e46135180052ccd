package provider

import (
	"fmt"
	"strings"
	"sync"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/walletloader"
)

type walletProviderImpl struct {
	configured     []entity.Wallet
	walletFilePath string
	logger         port.Logger

	once    sync.Once
	wallets []entity.Wallet
	err     error
}

// NewWalletProvider merges wallets from config with an optional wallet file.
func NewWalletProvider(configured []entity.Wallet, filePath string, logger port.Logger) port.WalletProvider {
	return &walletProviderImpl{configured: configured, walletFilePath: filePath, logger: logger}
}

// GetWallets returns config wallets first, then file wallets, without duplicates.
// The list is loaded once and reused for every cycle.
func (p *walletProviderImpl) GetWallets() ([]entity.Wallet, error) {
	p.once.Do(func() {
		p.wallets, p.err = p.load()
	})
	return p.wallets, p.err
}

func (p *walletProviderImpl) load() ([]entity.Wallet, error) {
	all := make([]entity.Wallet, 0, len(p.configured))
	for _, w := range p.configured {
		w.Chain = strings.ToLower(strings.TrimSpace(w.Chain))
		w.Address = strings.TrimSpace(w.Address)
		all = append(all, w)
	}

	if p.walletFilePath != "" {
		p.logger.Debug("Loading wallets from file", "path", p.walletFilePath)
		fromFile, err := walletloader.LoadWallets(p.walletFilePath, p.logger.Warn)
		if err != nil {
			p.logger.Error("Failed to load wallets", "path", p.walletFilePath, "error", err)
			return nil, fmt.Errorf("load wallets: %w", err)
		}
		all = append(all, fromFile...)
	}

	seen := make(map[string]struct{}, len(all))
	wallets := make([]entity.Wallet, 0, len(all))
	for _, w := range all {
		if _, dup := seen[w.Key()]; dup {
			p.logger.Debug("Duplicate wallet ignored", "chain", w.Chain, "address", w.Address)
			continue
		}
		seen[w.Key()] = struct{}{}
		wallets = append(wallets, w)
	}

	p.logger.Info("Wallets loaded successfully", "count", len(wallets), "path", p.walletFilePath)
	return wallets, nil
}
