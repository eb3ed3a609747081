package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"atelier/pkg/protocol"

	_ "modernc.org/sqlite"
)

func newTestKV(t *testing.T) *SQLiteKV {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return NewSQLiteKV(db)
}

func TestSQLiteKVRoundTrip(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "site-1|studio"); err != nil || ok {
		t.Fatalf("Get empty = ok=%v err=%v", ok, err)
	}

	if err := kv.Put(ctx, "site-1|studio", "agent-1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := kv.Get(ctx, "site-1|studio")
	if err != nil || !ok || v != "agent-1" {
		t.Fatalf("Get = %q ok=%v err=%v", v, ok, err)
	}

	// Overwrite (SwitchAgent path).
	if err := kv.Put(ctx, "site-1|studio", "agent-2"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	v, _, _ = kv.Get(ctx, "site-1|studio")
	if v != "agent-2" {
		t.Errorf("Get after overwrite = %q", v)
	}

	if err := kv.Delete(ctx, "site-1|studio"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "site-1|studio"); ok {
		t.Error("entry survived Delete")
	}

	// Deleting again is fine.
	if err := kv.Delete(ctx, "site-1|studio"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}
