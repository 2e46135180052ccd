package port

import "portfolio_monitor/internal/domain/entity"

// WalletProvider defines the interface for fetching the monitored wallet list.
type WalletProvider interface {
	GetWallets() ([]entity.Wallet, error)
}
