package historystore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
)

// timestampLayout is fixed width so that text order equals time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements port.HistoryStore on a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at cfg.DatabasePath and ensures the schema exists.
func Open(ctx context.Context, cfg configloader.HistoryConfig, logger *zap.Logger) (*SQLiteStore, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create database directory %s: %w", dir, err)
		}
	}

	logger.Info("Opening SQLite database", zap.String("file", cfg.DatabasePath))
	db, err := sql.Open("sqlite3", cfg.DatabasePath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pingTimeout := time.Duration(cfg.PingTimeoutSeconds) * time.Second
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store, err := New(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an already opened database and creates the schema.
func New(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, logger: logger.Named("HistoryStore")}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS balance_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		total_usd REAL NOT NULL,
		defi_usd REAL NOT NULL,
		debt_usd REAL NOT NULL,
		cycle_id TEXT,
		data_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_balance_history_timestamp ON balance_history(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts one record. Failures wrap entity.ErrPersistenceFailure.
func (s *SQLiteStore) Append(ctx context.Context, record entity.HistoryRecord) error {
	var payload any
	if len(record.Payload) > 0 {
		payload = string(record.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_history (timestamp, total_usd, defi_usd, debt_usd, cycle_id, data_json) VALUES (?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(timestampLayout),
		record.TotalUSD,
		record.DefiUSD,
		record.DebtUSD,
		record.CycleID,
		payload,
	)
	if err != nil {
		s.logger.Error("Failed to append history record", zap.String("cycleId", record.CycleID), zap.Error(err))
		return fmt.Errorf("append history record: %v: %w", err, entity.ErrPersistenceFailure)
	}
	return nil
}

// Query returns records with timestamp strictly after since, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, since time.Time) ([]entity.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, total_usd, defi_usd, debt_usd, cycle_id, data_json
		 FROM balance_history WHERE timestamp > ? ORDER BY timestamp ASC, id ASC`,
		since.UTC().Format(timestampLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %v: %w", err, entity.ErrPersistenceFailure)
	}
	defer rows.Close()

	records := make([]entity.HistoryRecord, 0)
	for rows.Next() {
		var (
			rec     entity.HistoryRecord
			ts      string
			cycleID sql.NullString
			payload sql.NullString
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.TotalUSD, &rec.DefiUSD, &rec.DebtUSD, &cycleID, &payload); err != nil {
			return nil, fmt.Errorf("scan history row: %v: %w", err, entity.ErrPersistenceFailure)
		}
		rec.Timestamp, err = time.Parse(timestampLayout, ts)
		if err != nil {
			s.logger.Warn("Skipping history row with malformed timestamp", zap.Int64("id", rec.ID), zap.String("timestamp", ts))
			continue
		}
		rec.CycleID = cycleID.String
		if payload.Valid {
			rec.Payload = []byte(payload.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %v: %w", err, entity.ErrPersistenceFailure)
	}
	return records, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("Failed to close database connection", zap.Error(err))
	}
}
