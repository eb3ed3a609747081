package main

import (
	"path/filepath"
	"testing"
)

func TestOpenStateDB_AppliesSchema(t *testing.T) {
	db, err := openStateDB(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("openStateDB: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"pending_messages", "agent_cache", "events"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenStateDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := openStateDB(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO pending_messages (id, text, agent_id, site_id, context) VALUES ('p1', 'hi', 'a1', 's1', 'studio')`,
	); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	// Schema application is idempotent and existing rows survive.
	db, err = openStateDB(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pending_messages`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("pending count after reopen = %d, want 1", n)
	}
}
