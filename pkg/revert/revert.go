// Package revert implements the checkpoint-revert coordinator: given a point
// in the displayed conversation it determines which backend checkpoint holds
// the document as it was right before that turn, restores it, and reports the
// truncated history the caller should display.
//
// The correlation between messages and checkpoints is positional: the
// backend's checkpoint list is newest-first, and checkpoint[k] is the
// document state immediately before the (k+1)-th most recent committed user
// turn's task ran. The coordinator never guesses: a computed position outside
// the list aborts the revert with no state change.
package revert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"atelier/pkg/protocol"
)

// API is the backend surface the coordinator needs. *backend.Client
// satisfies it.
type API interface {
	ListCheckpoints(ctx context.Context, scope protocol.Scope) ([]protocol.Checkpoint, error)
	RestoreCheckpoint(ctx context.Context, scope protocol.Scope, checkpointID string) (json.RawMessage, error)
	GetDocument(ctx context.Context, scope protocol.Scope) (json.RawMessage, error)
	MarkHistoryDeletedFrom(ctx context.Context, agentID, dbMessageID string) error
	DeleteEntity(ctx context.Context, entityID string) error
}

// Outcome is the result of a successful revert. The caller applies it to the
// UI: replace the displayed list with Messages, put RecallText in the input
// field, and (when Document is set) notify collaborators that the document
// was replaced wholesale.
type Outcome struct {
	Messages    []protocol.Message    // exact prefix of the pre-revert list
	RecallText  string                // clicked user message text, recalled for editing
	Document    json.RawMessage       // authoritative document after restore; nil if none
	Restored    *protocol.Checkpoint  // checkpoint that was restored, if any
	Checkpoints []protocol.Checkpoint // refreshed list after restore; nil if unchanged
	LocalOnly   bool                  // truncation happened without server interaction
}

// Coordinator executes reverts against the backend.
type Coordinator struct {
	api       API
	log       *slog.Logger
	reverting atomic.Bool
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(api API, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{api: api, log: log}
}

// Reverting reports whether a revert is in progress. Callers use it to
// suppress history auto-reload while the truncation is being applied.
func (c *Coordinator) Reverting() bool {
	return c.reverting.Load()
}

// CommittedUserTurns counts the user messages in tail that have been
// acknowledged by the backend. This is n in the checkpoint position
// computation: reverting n committed turns restores checkpoint[n-1].
func CommittedUserTurns(tail []protocol.Message) int {
	n := 0
	for _, m := range tail {
		if m.Sender == protocol.SenderUser && m.Committed() {
			n++
		}
	}
	return n
}

// RevertTo reverts the conversation and document to the state before
// messages[index]. On any checkpoint failure it returns an error and no
// mutation has occurred; the displayed list must be left untouched.
func (c *Coordinator) RevertTo(ctx context.Context, scope protocol.Scope, agentID string, messages []protocol.Message, index int) (*Outcome, error) {
	if index < 0 || index >= len(messages) {
		return nil, fmt.Errorf("revert index %d out of range (have %d messages)", index, len(messages))
	}

	c.reverting.Store(true)
	defer c.reverting.Store(false)

	clicked := messages[index]
	tail := messages[index:]

	out := &Outcome{
		Messages: append([]protocol.Message(nil), messages[:index]...),
	}
	if clicked.Sender == protocol.SenderUser {
		out.RecallText = clicked.Text
	}

	// Never-acknowledged turn: the server has no record to anchor on, so the
	// truncation is local-only.
	if !clicked.Committed() {
		out.LocalOnly = true
		return out, nil
	}

	// Server-side history trim is best-effort: the local truncation matters
	// more than the audit trail.
	if err := c.api.MarkHistoryDeletedFrom(ctx, agentID, clicked.DBMessageID); err != nil {
		c.log.Warn("mark history deleted failed", "agent_id", agentID,
			"db_message_id", clicked.DBMessageID, "error", err)
	}

	spec := protocol.ContextFor(scope.Context)
	switch {
	case spec.Checkpoints:
		if err := c.restoreForTail(ctx, scope, tail, out); err != nil {
			return nil, err
		}
	case spec.SideEffects:
		c.deleteTailEntities(ctx, tail)
	}

	return out, nil
}

// restoreForTail selects and restores the checkpoint matching the tail being
// undone, then loads the authoritative document. Any failure before the
// restore call returns with no mutation; the restore call itself is the
// point of no return and its failure also aborts the revert.
func (c *Coordinator) restoreForTail(ctx context.Context, scope protocol.Scope, tail []protocol.Message, out *Outcome) error {
	n := CommittedUserTurns(tail)
	pos := n - 1

	checkpoints, err := c.api.ListCheckpoints(ctx, scope)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	if pos < 0 || pos >= len(checkpoints) {
		return &protocol.CheckpointIndexError{Index: pos, Count: len(checkpoints)}
	}
	target := checkpoints[pos]

	doc, err := c.api.RestoreCheckpoint(ctx, scope, target.ID)
	if err != nil {
		return fmt.Errorf("restore checkpoint %s: %w", target.ID, err)
	}

	// Prefer the authoritative reload; fall back to the restore response if
	// the reload fails, since the restore itself already succeeded.
	if fresh, err := c.api.GetDocument(ctx, scope); err == nil {
		doc = fresh
	} else {
		c.log.Warn("document reload after restore failed, using restore response",
			"checkpoint_id", target.ID, "error", err)
	}

	out.Document = doc
	out.Restored = &target
	if refreshed, err := c.api.ListCheckpoints(ctx, scope); err == nil {
		out.Checkpoints = refreshed
	} else {
		c.log.Warn("checkpoint list refresh failed", "error", err)
	}
	return nil
}

// deleteTailEntities removes side-effect entities referenced by assistant
// messages in the tail, so the revert is effect-complete for contexts without
// document checkpoints. Failures are logged; the truncation proceeds.
func (c *Coordinator) deleteTailEntities(ctx context.Context, tail []protocol.Message) {
	for _, m := range tail {
		if m.Sender != protocol.SenderAssistant || m.EntityID == "" {
			continue
		}
		if err := c.api.DeleteEntity(ctx, m.EntityID); err != nil {
			c.log.Warn("entity cleanup failed", "entity_id", m.EntityID, "error", err)
		}
	}
}
