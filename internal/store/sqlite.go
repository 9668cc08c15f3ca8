package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"margin_maker/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS rebalance_actions (
	id          TEXT PRIMARY KEY,
	manager_key TEXT NOT NULL,
	kind        TEXT NOT NULL,
	amount      REAL NOT NULL,
	risk_ratio  REAL NOT NULL,
	executed_at INTEGER NOT NULL,
	checksum    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rebalance_actions_manager
	ON rebalance_actions (manager_key, executed_at DESC);
`

// SQLiteStore keeps the ledger in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LastAction(ctx context.Context, managerKey string) (time.Time, error) {
	var nanos sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(executed_at) FROM rebalance_actions WHERE manager_key = ?`, managerKey).Scan(&nanos)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last action: %w", err)
	}
	if !nanos.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos.Int64), nil
}

func (s *SQLiteStore) RecordAction(ctx context.Context, rec ActionRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rebalance_actions (id, manager_key, kind, amount, risk_ratio, executed_at, checksum)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ManagerKey, string(rec.Kind), rec.Amount, rec.RiskRatio,
		rec.ExecutedAt.UnixNano(), rec.checksum())
	if err != nil {
		return fmt.Errorf("failed to write action to db: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Recent(ctx context.Context, managerKey string, limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, manager_key, kind, amount, risk_ratio, executed_at, checksum
		 FROM rebalance_actions WHERE manager_key = ?
		 ORDER BY executed_at DESC LIMIT ?`, managerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var (
			rec    ActionRecord
			kind   string
			nanos  int64
			stored []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ManagerKey, &kind, &rec.Amount, &rec.RiskRatio, &nanos, &stored); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		rec.Kind = core.ActionKind(kind)
		rec.ExecutedAt = time.Unix(0, nanos)

		if !bytes.Equal(stored, rec.checksum()) {
			return nil, fmt.Errorf("action %s: %w", rec.ID, ErrCorruptRecord)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
