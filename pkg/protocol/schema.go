package protocol

// SchemaDDL defines the SQLite schema for the Atelier coordinator state
// database. Tables: pending_messages, agent_cache, events.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Durable outbox: submitted-but-unacknowledged requests, keyed by the
-- originating user message id. A row exists iff no terminal result has
-- been reconciled for it.
CREATE TABLE IF NOT EXISTS pending_messages (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    site_id TEXT,
    context TEXT NOT NULL,
    submitted_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Agent id cache, one row per scope key ("siteID|context").
CREATE TABLE IF NOT EXISTS agent_cache (
    scope_key TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Coordinator lifecycle event log: submissions, results, reverts,
-- channel reconnects.
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    task_id TEXT,
    agent_id TEXT,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
