package historystore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestSQLiteStore_AppendAndQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, total := range []float64{100, 200, 300} {
		require.NoError(t, store.Append(ctx, entity.HistoryRecord{
			CycleID:   "cycle",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			TotalUSD:  total,
			DefiUSD:   total / 2,
			DebtUSD:   10,
			Payload:   []byte(`{"walletCount":1}`),
		}))
	}

	t.Run("strictly after since", func(t *testing.T) {
		records, err := store.Query(ctx, base)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 200.0, records[0].TotalUSD)
		assert.Equal(t, 300.0, records[1].TotalUSD)
		assert.True(t, records[0].Timestamp.Equal(base.Add(time.Hour)))
		assert.JSONEq(t, `{"walletCount":1}`, string(records[0].Payload))
		assert.Equal(t, "cycle", records[0].CycleID)
	})

	t.Run("all", func(t *testing.T) {
		records, err := store.Query(ctx, time.Time{})
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("none", func(t *testing.T) {
		records, err := store.Query(ctx, base.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NotNil(t, records)
	})
}

func TestSQLiteStore_OrderingAcrossZones(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// 11:00 in UTC+2 is 09:00 UTC, earlier than 10:00 UTC.
	zone := time.FixedZone("UTC+2", 2*60*60)
	require.NoError(t, store.Append(ctx, entity.HistoryRecord{Timestamp: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), TotalUSD: 2}))
	require.NoError(t, store.Append(ctx, entity.HistoryRecord{Timestamp: time.Date(2025, 1, 1, 11, 0, 0, 0, zone), TotalUSD: 1}))

	records, err := store.Query(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1.0, records[0].TotalUSD)
	assert.Equal(t, 2.0, records[1].TotalUSD)
}

func TestSQLiteStore_AppendFailure(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	store, err := New(db, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = store.Append(context.Background(), entity.HistoryRecord{Timestamp: time.Now()})
	assert.ErrorIs(t, err, entity.ErrPersistenceFailure)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(context.Background(), configloader.HistoryConfig{DatabasePath: path, MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(context.Background(), entity.HistoryRecord{Timestamp: time.Now(), TotalUSD: 5}))
	records, err := store.Query(context.Background(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
