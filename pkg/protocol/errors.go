package protocol

import "fmt"

// CheckpointIndexError reports a revert whose computed checkpoint position
// falls outside the list returned by the backend. The revert must abort; the
// coordinator never guesses a nearby checkpoint.
type CheckpointIndexError struct {
	Index int // computed position, newest-first
	Count int // checkpoints available
}

func (e *CheckpointIndexError) Error() string {
	return fmt.Sprintf("checkpoint index %d out of range (have %d checkpoints)",
		e.Index, e.Count)
}

// AgentNotFoundError reports that a cached or switched-to agent no longer
// exists on the backend. Callers evict the cache entry and create a new agent.
type AgentNotFoundError struct {
	AgentID string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found", e.AgentID)
}

// PendingNotFoundError reports a retry or discard against an outbox record
// that does not exist (already reconciled or never written).
type PendingNotFoundError struct {
	ID string
}

func (e *PendingNotFoundError) Error() string {
	return fmt.Sprintf("pending message %s not found", e.ID)
}

// ScopeRequiredError reports a global-scope request against a context that
// requires a site binding.
type ScopeRequiredError struct {
	Context string
}

func (e *ScopeRequiredError) Error() string {
	return fmt.Sprintf("context %s requires a site scope", e.Context)
}
