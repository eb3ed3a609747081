// Package outbox implements the durable fallback store for submitted-but-
// unacknowledged assistant requests. Rows are written before the network
// submission and removed only when a terminal result is reconciled or the
// user discards/retries the entry, so a crash or lost channel message always
// leaves a recoverable record.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atelier/pkg/protocol"
)

// Store persists pending messages in the coordinator state database.
// All mutations are single-row statements; the caller's event loop provides
// any ordering needed.
type Store struct {
	db *sql.DB
}

// New creates a Store over an open database. The pending_messages table must
// exist (protocol.SchemaDDL).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Put records a pending message, overwriting any previous row with the same
// id. Called before the network submission so the record survives a crash
// between write and submit.
func (s *Store) Put(ctx context.Context, p protocol.PendingMessage) error {
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_messages (id, text, agent_id, site_id, context, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Text, p.AgentID, p.SiteID, p.Context, p.SubmittedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put pending %s: %w", p.ID, err)
	}
	return nil
}

// Get returns the pending message with the given id, or a
// *protocol.PendingNotFoundError if no row exists.
func (s *Store) Get(ctx context.Context, id string) (protocol.PendingMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, agent_id, COALESCE(site_id, ''), context, submitted_at
		 FROM pending_messages WHERE id = ?`, id)
	p, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.PendingMessage{}, &protocol.PendingNotFoundError{ID: id}
	}
	if err != nil {
		return protocol.PendingMessage{}, fmt.Errorf("get pending %s: %w", id, err)
	}
	return p, nil
}

// Delete removes the pending message with the given id. Deleting an absent
// row is not an error: result reconciliation and user discard may race and
// both must be able to clear the entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pending %s: %w", id, err)
	}
	return nil
}

// List returns all pending messages, oldest first.
func (s *Store) List(ctx context.Context) ([]protocol.PendingMessage, error) {
	return s.list(ctx,
		`SELECT id, text, agent_id, COALESCE(site_id, ''), context, submitted_at
		 FROM pending_messages ORDER BY submitted_at, id`)
}

// ListByAgent returns the pending messages for one agent, oldest first.
func (s *Store) ListByAgent(ctx context.Context, agentID string) ([]protocol.PendingMessage, error) {
	return s.list(ctx,
		`SELECT id, text, agent_id, COALESCE(site_id, ''), context, submitted_at
		 FROM pending_messages WHERE agent_id = ? ORDER BY submitted_at, id`, agentID)
}

// Count returns the number of pending rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]protocol.PendingMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []protocol.PendingMessage
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPending(sc scanner) (protocol.PendingMessage, error) {
	var p protocol.PendingMessage
	var submittedAt string
	if err := sc.Scan(&p.ID, &p.Text, &p.AgentID, &p.SiteID, &p.Context, &submittedAt); err != nil {
		return protocol.PendingMessage{}, err
	}
	ts, err := time.Parse(time.RFC3339, submittedAt)
	if err != nil {
		// Rows written by SQLite's datetime default use the space form.
		ts, err = time.Parse("2006-01-02 15:04:05", submittedAt)
		if err != nil {
			return protocol.PendingMessage{}, fmt.Errorf("parse submitted_at %q: %w", submittedAt, err)
		}
	}
	p.SubmittedAt = ts
	return p, nil
}
