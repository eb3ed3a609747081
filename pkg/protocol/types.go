// Package protocol defines the shared domain types for the Atelier assistant
// coordinator: conversation messages, agents, pending outbound records,
// checkpoints, and the task result wire format. Other packages depend on
// protocol; protocol depends on nothing above the standard library.
package protocol

import (
	"strings"
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

// Sender constants.
const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Scope identifies the (site, context) pair a conversation is bound to.
// SiteID may be empty only for contexts that declare themselves
// scope-optional (see ContextSpec).
type Scope struct {
	SiteID  string `json:"site_id,omitempty"`
	Context string `json:"context"`
}

// Key returns the cache key for this scope, in the form "siteID|context".
// A global scope keys as "|context".
func (s Scope) Key() string {
	return s.SiteID + "|" + s.Context
}

// Global reports whether the scope has no site binding.
func (s Scope) Global() bool {
	return s.SiteID == ""
}

// ParseScopeKey is the inverse of Scope.Key.
func ParseScopeKey(key string) Scope {
	site, ctx, _ := strings.Cut(key, "|")
	return Scope{SiteID: site, Context: ctx}
}

// Agent is one named conversation thread. The backend owns the identity;
// the client only caches the id per scope.
type Agent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Scope Scope  `json:"scope"`
}

// Message is a unit of displayed conversation. IDs are locally generated and
// transient; DBMessageID links to the persisted history record once the
// backend has acknowledged the turn. A message with an empty DBMessageID has
// never been acknowledged and cannot anchor a server-side revert.
type Message struct {
	ID          string `json:"id"`
	Sender      Sender `json:"sender"`
	Text        string `json:"text"`
	DBMessageID string `json:"db_message_id,omitempty"`
	EntityID    string `json:"entity_id,omitempty"` // externally created entity (e.g. calendar event)
	Loading     bool   `json:"loading,omitempty"`
	RetryID     string `json:"retry_id,omitempty"` // pending record this error message offers to retry
}

// Committed reports whether the message has been acknowledged by the backend
// and can be used as a revert anchor against server state.
func (m Message) Committed() bool {
	return m.DBMessageID != ""
}

// PendingMessage is the durable record of a submitted-but-unacknowledged
// request. It exists in the outbox if and only if no terminal result has been
// reconciled for it. ID equals the originating user message id.
type PendingMessage struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	AgentID     string    `json:"agent_id"`
	SiteID      string    `json:"site_id,omitempty"`
	Context     string    `json:"context"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Scope returns the scope the pending message was submitted under.
func (p PendingMessage) Scope() Scope {
	return Scope{SiteID: p.SiteID, Context: p.Context}
}

// Checkpoint describes an immutable document snapshot held by the backend,
// taken immediately before a mutating task ran. Checkpoint lists are
// newest-first as returned by the backend; the client never reorders them.
type Checkpoint struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Label     string    `json:"label"`
}

// HistoryPair is one persisted request/response turn as returned by the
// backend history endpoint. It expands into exactly two Messages sharing the
// same DBMessageID.
type HistoryPair struct {
	DBMessageID string    `json:"db_message_id"`
	Request     string    `json:"request"`
	Response    string    `json:"response"`
	EntityID    string    `json:"entity_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
