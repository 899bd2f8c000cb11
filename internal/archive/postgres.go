// Package archive persists committed ledger entries to Postgres. The archive
// is the durable mirror of the in-memory chain: restart recovery and late
// consumers read from here, not from the live stream.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"northstar/internal/ledger"
	"northstar/pkg/platform/sentinel"
)

// Store writes and reads archived entries via database/sql over the pgx
// stdlib driver.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres, verifies the connection, and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := New(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the archive table when missing. The unique constraint
// on position keeps concurrent archivers from interleaving two chains.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			position    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			entry_id    UUID NOT NULL UNIQUE,
			entry_type  TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			payload     JSONB NOT NULL,
			prev_hash   TEXT NOT NULL,
			hash        TEXT NOT NULL UNIQUE,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// Append archives one committed entry. Re-archiving the same entry is a
// no-op so sink retries stay idempotent.
func (s *Store) Append(ctx context.Context, entry ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (entry_id, entry_type, created_at, payload, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.EntryID,
		string(entry.Type),
		entry.CreatedAt,
		[]byte(entry.Payload),
		entry.PrevHash,
		entry.Hash,
	)
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", entry.EntryID, err)
	}
	return nil
}

// List returns archived entries in chain order, oldest first.
func (s *Store) List(ctx context.Context, limit int) ([]ledger.Entry, error) {
	query := `
		SELECT entry_id, entry_type, created_at, payload, prev_hash, hash
		FROM ledger_entries
		ORDER BY position ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list archived entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var entryType string
		if err := rows.Scan(&e.EntryID, &entryType, &e.CreatedAt, (*[]byte)(&e.Payload), &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan archived entry: %w", err)
		}
		e.Type = ledger.EntryType(entryType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetByHash returns one archived entry.
//
// Errors: sentinel.ErrNotFound when no entry carries the hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (ledger.Entry, error) {
	query := `
		SELECT entry_id, entry_type, created_at, payload, prev_hash, hash
		FROM ledger_entries
		WHERE hash = $1
	`
	var e ledger.Entry
	var entryType string
	err := s.db.QueryRowContext(ctx, query, hash).
		Scan(&e.EntryID, &entryType, &e.CreatedAt, (*[]byte)(&e.Payload), &e.PrevHash, &e.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, fmt.Errorf("archived entry %s: %w", hash, sentinel.ErrNotFound)
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("get archived entry: %w", err)
	}
	e.Type = ledger.EntryType(entryType)
	return e, nil
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM ledger_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archived entries: %w", err)
	}
	return n, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}
