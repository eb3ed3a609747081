package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KV is the agent-id cache abstraction. Keys follow the scope key scheme
// "siteID|context"; values are agent ids. Get returns ok=false for a missing
// key rather than an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SQLiteKV is the production KV over the agent_cache table in the coordinator
// state database.
type SQLiteKV struct {
	db *sql.DB
}

// NewSQLiteKV creates a SQLiteKV. The agent_cache table must exist
// (protocol.SchemaDDL).
func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

// Get returns the cached agent id for a scope key.
func (k *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := k.db.QueryRowContext(ctx,
		`SELECT agent_id FROM agent_cache WHERE scope_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores or overwrites the cached agent id for a scope key.
func (k *SQLiteKV) Put(ctx context.Context, key, value string) error {
	_, err := k.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO agent_cache (scope_key, agent_id, updated_at)
		 VALUES (?, ?, datetime('now'))`, key, value)
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Delete evicts the cache entry for a scope key. Missing keys are not an
// error.
func (k *SQLiteKV) Delete(ctx context.Context, key string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM agent_cache WHERE scope_key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}
