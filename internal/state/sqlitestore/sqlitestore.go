// Package sqlitestore persists the monitor state in a SQLite database using
// the pure-Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/angeloszaimis/subwatch/internal/model"
	"github.com/angeloszaimis/subwatch/internal/state"
)

// Store is a state.Store backed by SQLite. A single connection and a
// writer mutex keep mutations sequential.
type Store struct {
	db    *sql.DB
	mutex sync.Mutex
}

var _ state.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS history (
	host        TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	status      INTEGER,
	recorded_at TEXT    NOT NULL,
	PRIMARY KEY (host, seq)
);

CREATE TABLE IF NOT EXISTS results (
	host       TEXT PRIMARY KEY,
	status     INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// LoadHistory returns every host's history in sequence order.
func (s *Store) LoadHistory(ctx context.Context) (state.History, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host, status FROM history ORDER BY host, seq`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := state.History{}
	for rows.Next() {
		var (
			host   string
			status sql.NullInt64
		)
		if err := rows.Scan(&host, &status); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		history[host] = append(history[host], fromNull(status))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// LoadResults returns the recorded reachable status per host.
func (s *Store) LoadResults(ctx context.Context) (state.Results, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host, status FROM results`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := state.Results{}
	for rows.Next() {
		var (
			host   string
			status int
		)
		if err := rows.Scan(&host, &status); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}
		results[host] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// AppendHistory appends status to key's history unless it repeats the last entry.
func (s *Store) AppendHistory(ctx context.Context, key string, status model.Status) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		seq  int64
		last sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seq, status FROM history WHERE host = ? ORDER BY seq DESC LIMIT 1`, key,
	).Scan(&seq, &last)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		seq = 0
	case err != nil:
		return fmt.Errorf("query last status for %s: %w", key, err)
	default:
		if fromNull(last) == status {
			return nil
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (host, seq, status, recorded_at) VALUES (?, ?, ?, ?)`,
		key, seq+1, toNull(status), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history for %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history for %s: %w", key, err)
	}
	return nil
}

// SetResult upserts code as key's latest reachable status.
func (s *Store) SetResult(ctx context.Context, key string, code int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO results (host, status, updated_at) VALUES (?, ?, ?)
ON CONFLICT(host) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		key, code, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert result for %s: %w", key, err)
	}
	return nil
}

func fromNull(v sql.NullInt64) model.Status {
	if !v.Valid {
		return model.Unknown
	}
	return model.Code(int(v.Int64))
}

func toNull(s model.Status) sql.NullInt64 {
	code, ok := s.Value()
	return sql.NullInt64{Int64: int64(code), Valid: ok}
}
