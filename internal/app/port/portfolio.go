package port

import (
	"context"
	"time"

	"portfolio_monitor/internal/domain/entity"
)

// PortfolioAggregator builds a priced snapshot for a wallet list.
type PortfolioAggregator interface {
	// BuildSnapshot never fails as a whole; wallets that could not be fetched
	// are omitted from the snapshot and returned as PortfolioErrors.
	BuildSnapshot(ctx context.Context, wallets []entity.Wallet) (*entity.PortfolioSnapshot, []entity.PortfolioError)
}

// PortfolioQueryService is the read and trigger surface used by the API layer.
type PortfolioQueryService interface {
	GetCurrentSnapshot() (*entity.PortfolioSnapshot, error)
	GetWalletSnapshot(chain, address string) (*entity.WalletSnapshot, error)
	TriggerRefresh() entity.RefreshResult
	GetStatus() entity.CoordinatorStatus
}

// HistoryStore persists aggregate snapshots over time.
type HistoryStore interface {
	// Append fails with entity.ErrPersistenceFailure.
	Append(ctx context.Context, record entity.HistoryRecord) error
	// Query returns records newer than since, ascending by timestamp.
	Query(ctx context.Context, since time.Time) ([]entity.HistoryRecord, error)
}

// SnapshotListener is notified after every published snapshot.
type SnapshotListener interface {
	OnSnapshot(ctx context.Context, snapshot *entity.PortfolioSnapshot)
}

// Notifier delivers a human-readable message to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
