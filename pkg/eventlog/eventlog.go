// Package eventlog records and queries coordinator lifecycle events in the
// SQLite state database: submissions, results, reverts, channel reconnects.
// The write path is used by the pipeline; the read path backs `atelier logs`.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Event represents a single event from the coordinator log.
type Event struct {
	ID        int64
	Type      string
	Source    string
	TaskID    string
	AgentID   string
	Payload   string
	CreatedAt time.Time
}

// Writer appends events to the log. Failures to log are the caller's to
// ignore: the event log is observability, not state.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a Writer over an open state database.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// Log appends one event.
func (w *Writer) Log(ctx context.Context, eventType, source, taskID, agentID, payload string) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO events (type, source, task_id, agent_id, payload) VALUES (?, ?, ?, ?, ?)`,
		eventType, source, taskID, agentID, payload)
	if err != nil {
		return fmt.Errorf("log event %s: %w", eventType, err)
	}
	return nil
}

// QueryOpts specifies filter criteria for querying events.
type QueryOpts struct {
	// AgentID filters events to a specific agent.
	AgentID string

	// TaskID filters events to a specific task.
	TaskID string

	// EventType filters to a specific event type (e.g., "submit", "result", "revert").
	EventType string

	// After filters events created after this time (inclusive).
	After *time.Time

	// Before filters events created before this time (inclusive).
	Before *time.Time

	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// Reader provides read-only access to the coordinator event log.
type Reader struct {
	db *sql.DB
}

// NewReader creates a Reader over an open state database.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Query retrieves events matching the given filter criteria, newest first.
// Returns an empty slice if no events match.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Event, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var taskID, agentID, payload sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &taskID, &agentID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.TaskID = taskID.String
		e.AgentID = agentID.String
		e.Payload = payload.String
		e.CreatedAt, err = parseSQLiteTime(createdAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return events, nil
}

// buildQuery constructs the SQL query and args from the filter options.
func buildQuery(opts QueryOpts) (string, []any) {
	var conds []string
	var args []any

	if opts.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, opts.AgentID)
	}
	if opts.TaskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, opts.TaskID)
	}
	if opts.EventType != "" {
		conds = append(conds, "type = ?")
		args = append(args, opts.EventType)
	}
	if opts.After != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, opts.After.UTC().Format("2006-01-02 15:04:05"))
	}
	if opts.Before != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format("2006-01-02 15:04:05"))
	}

	query := "SELECT id, type, source, task_id, agent_id, payload, created_at FROM events"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	return query, args
}

// parseSQLiteTime handles both SQLite's datetime('now') form and RFC3339.
func parseSQLiteTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
