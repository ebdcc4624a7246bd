// Package clientlog is the client's durable pending-mutation queue: one
// sqlite row per list key, carrying enough state for the sync engine to
// retry a create or delete without losing track of progress across
// restarts.
package clientlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Row is one pending (or already-synced) mutation.
type Row struct {
	Key           string
	Name          string
	Creator       string
	Synced        bool
	Deleted       bool
	RetryCount    int
	LastAttemptAt sql.NullTime
	LastModified  time.Time
}

// Log is the client's durable queue, backed by sqlite.
type Log struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the sqlite-backed log at path (":memory:" for
// tests).
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Log{db: db}
	if err := l.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *Log) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS list (
			key               TEXT PRIMARY KEY,
			name              TEXT,
			creator           TEXT,
			synced            INTEGER NOT NULL DEFAULT 0,
			deleted           INTEGER NOT NULL DEFAULT 0,
			retry_count       INTEGER NOT NULL DEFAULT 0,
			last_attempt_at   TIMESTAMP,
			last_modified     TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database handle.
func (l *Log) Close() error { return l.db.Close() }

// Create inserts a new unsynced row for key, carrying name/creator.
func (l *Log) Create(ctx context.Context, key, name, creator string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO list (key, name, creator, synced, deleted, retry_count, last_modified)
		VALUES (?, ?, ?, 0, 0, 0, ?)
	`, key, name, creator, time.Now().UTC())
	return err
}

// Delete marks key as deleted. If it was already synced, it is reset to
// unsynced with retry_count=0 so the next sync pass sends a delete_list.
// If it had never synced, the row is flagged deleted and marked synced, so
// it leaves the unsynced queue — no server round trip is necessary for a
// list the server never saw.
func (l *Log) Delete(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var synced, deleted bool
	err = tx.QueryRowContext(ctx, `SELECT synced, deleted FROM list WHERE key = ?`, key).Scan(&synced, &deleted)
	if err == sql.ErrNoRows {
		return fmt.Errorf("list %s not found", key)
	}
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	if deleted {
		return nil
	}

	if synced {
		_, err = tx.ExecContext(ctx, `
			UPDATE list SET deleted = 1, synced = 0, retry_count = 0, last_modified = ?
			WHERE key = ?
		`, time.Now().UTC(), key)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE list SET deleted = 1, synced = 1 WHERE key = ?`, key)
	}
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return tx.Commit()
}

// MarkSynced resets the row's retry state and marks it synced.
func (l *Log) MarkSynced(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		UPDATE list SET synced = 1, retry_count = 0, last_attempt_at = ?, last_modified = ?
		WHERE key = ?
	`, time.Now().UTC(), time.Now().UTC(), key)
	return err
}

// IncrementRetry bumps retry_count and stamps last_attempt_at.
func (l *Log) IncrementRetry(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		UPDATE list SET retry_count = retry_count + 1, last_attempt_at = ? WHERE key = ?
	`, time.Now().UTC(), key)
	return err
}

// ResetFailedRetries zeroes retry_count for every unsynced row currently
// at or above threshold, giving a poisoned row another chance after some
// other mutation has succeeded this pass.
func (l *Log) ResetFailedRetries(ctx context.Context, threshold int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		UPDATE list SET retry_count = 0 WHERE synced = 0 AND retry_count >= ?
	`, threshold)
	return err
}

// Unsynced returns every row with synced=false, ordered by last_modified
// ascending, matching the sync loop's processing order.
func (l *Log) Unsynced(ctx context.Context) ([]Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT key, name, creator, synced, deleted, retry_count, last_attempt_at, last_modified
		FROM list WHERE synced = 0 ORDER BY last_modified ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Key, &r.Name, &r.Creator, &r.Synced, &r.Deleted, &r.RetryCount, &r.LastAttemptAt, &r.LastModified); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// All returns every non-deleted row, most recently modified first.
func (l *Log) All(ctx context.Context) ([]Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT key, name, creator, synced, deleted, retry_count, last_attempt_at, last_modified
		FROM list WHERE deleted = 0 ORDER BY last_modified DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Key, &r.Name, &r.Creator, &r.Synced, &r.Deleted, &r.RetryCount, &r.LastAttemptAt, &r.LastModified); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
