// Package workerstore is the durable per-worker key state: one row per
// shopping-list key, tracking whether it is active or tombstoned, the local
// role (primary-copy or replica-copy), and the source worker a replica was
// seeded from. Backed by modernc.org/sqlite, a pure-Go driver, instead of a
// hand-rolled file/WAL format.
//
// Every statement runs inside its own transaction, so durable, atomic
// per-statement writes fall out of sqlite's own journal rather than
// application-level bookkeeping.
package workerstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Role distinguishes a worker's local bookkeeping role for a key.
type Role string

const (
	RolePrimary Role = "primary-copy"
	RoleReplica Role = "replica-copy"
)

// Record is one key's row.
type Record struct {
	Key          string
	Name         string
	Creator      string
	Active       bool
	Role         Role
	Source       string // optional: empty if this worker is primary
	LastModified time.Time
}

// Store is a single worker's durable ordered map of key -> Record. All
// operations serialize through mu because sqlite itself only tolerates one
// writer at a time.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the sqlite-backed store at path (use ":memory:" for
// tests) and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite allows exactly one writer; keep it simple

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lists (
			key           TEXT PRIMARY KEY,
			name          TEXT,
			creator       TEXT,
			active        INTEGER NOT NULL DEFAULT 1,
			role          TEXT NOT NULL,
			source_worker TEXT,
			last_modified TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put upserts key with the given payload. isReplica selects the role
// recorded locally; source is the worker a replica copy was seeded from
// (ignored for a primary write). Put is idempotent: re-delivering the same
// create is a no-op apart from bumping last_modified.
func (s *Store) Put(ctx context.Context, key, name, creator string, isReplica bool, source string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := RolePrimary
	if isReplica {
		role = RoleReplica
	} else {
		source = ""
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lists (key, name, creator, active, role, source_worker, last_modified)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			creator = excluded.creator,
			active = 1,
			role = excluded.role,
			source_worker = excluded.source_worker,
			last_modified = excluded.last_modified
	`, key, name, creator, string(role), nullable(source), now)
	if err != nil {
		return Record{}, fmt.Errorf("upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}

	return Record{Key: key, Name: name, Creator: creator, Active: true, Role: role, Source: source, LastModified: now}, nil
}

// Delete marks key as tombstoned (active=false). The row is retained, not
// removed. Delete on an already-tombstoned key is a no-op apart from
// bumping last_modified. had is true if the key was known to this store at
// all, active or not.
func (s *Store) Delete(ctx context.Context, key string) (had bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM lists WHERE key = ?`, key).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lookup: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE lists SET active = 0, last_modified = ? WHERE key = ?
	`, time.Now().UTC(), key)
	if err != nil {
		return false, fmt.Errorf("update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Status reports whether key is known to this store at all, and whether it
// is currently active.
func (s *Store) Status(ctx context.Context, key string) (exists, active bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var activeInt int
	err = s.db.QueryRowContext(ctx, `SELECT active FROM lists WHERE key = ?`, key).Scan(&activeInt)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("status: %w", err)
	}
	return true, activeInt != 0, nil
}

// Fetch returns the full record, or ok=false if the key is unknown or
// inactive (tombstoned records are not returned to ordinary fetches, but
// are still visible to Delete/Status).
func (s *Store) Fetch(ctx context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec Record
	var activeInt int
	var role, source sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT key, name, creator, active, role, source_worker, last_modified
		FROM lists WHERE key = ?
	`, key)
	if err := row.Scan(&rec.Key, &rec.Name, &rec.Creator, &activeInt, &role, &source, &rec.LastModified); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("fetch: %w", err)
	}
	if activeInt == 0 {
		return Record{}, false, nil
	}
	rec.Active = true
	rec.Role = Role(role.String)
	rec.Source = source.String
	return rec, true, nil
}

// Keys returns every active (non-tombstoned) key held by this store — the
// payload for the list_keys probe that lets a restarted router warm its
// location map.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM lists WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
