// Package registry persists resolved pool key sets keyed by base mint, so
// later buys can skip RPC resolution entirely.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"raysniper/internal/domain"
)

// Store is the pool registry interface.
type Store interface {
	// Upsert stores keys under their base mint, replacing any previous
	// entry for the same mint.
	Upsert(ctx context.Context, keys *domain.PoolKeySet) error
	// Get returns the keys for a base mint, or nil when absent.
	Get(ctx context.Context, baseMint string) (*domain.PoolKeySet, error)
	// List returns every stored key set.
	List(ctx context.Context) ([]*domain.PoolKeySet, error)
	Close() error
}

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	base_mint TEXT PRIMARY KEY,
	pool_data TEXT NOT NULL
);
`

// Open opens (creating if needed) the registry at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry %s: %w", path, err)
	}

	// Single writer; WAL keeps readers unblocked during upserts.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, keys *domain.PoolKeySet) error {
	if keys.BaseMint == "" {
		return errors.New("registry: empty base mint")
	}

	payload, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("marshal pool keys: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO pools (base_mint, pool_data) VALUES (?, ?)",
		keys.BaseMint, string(payload))
	if err != nil {
		return fmt.Errorf("upsert pool %s: %w", keys.BaseMint, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, baseMint string) (*domain.PoolKeySet, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT pool_data FROM pools WHERE base_mint = ?", baseMint).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", baseMint, err)
	}

	var keys domain.PoolKeySet
	if err := json.Unmarshal([]byte(payload), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal pool %s: %w", baseMint, err)
	}
	return &keys, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*domain.PoolKeySet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT pool_data FROM pools ORDER BY base_mint")
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var out []*domain.PoolKeySet
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		var keys domain.PoolKeySet
		if err := json.Unmarshal([]byte(payload), &keys); err != nil {
			return nil, fmt.Errorf("unmarshal pool row: %w", err)
		}
		out = append(out, &keys)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
