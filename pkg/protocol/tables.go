package protocol

// AgentCacheRow represents a row in the agent_cache SQLite table.
// One row per scope key; the session manager reads and evicts them.
type AgentCacheRow struct {
	ScopeKey  string `json:"scope_key"`
	AgentID   string `json:"agent_id"`
	UpdatedAt string `json:"updated_at"`
}
