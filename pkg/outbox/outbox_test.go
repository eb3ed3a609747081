package outbox

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"atelier/pkg/protocol"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return New(db)
}

func pending(id, agentID string) protocol.PendingMessage {
	return protocol.PendingMessage{
		ID:          id,
		Text:        "make the hero section blue",
		AgentID:     agentID,
		SiteID:      "site-1",
		Context:     protocol.ContextStudio,
		SubmittedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := pending("m1", "agent-1")
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != p.Text || got.AgentID != p.AgentID || got.SiteID != p.SiteID || got.Context != p.Context {
		t.Errorf("Get = %+v, want %+v", got, p)
	}
	if !got.SubmittedAt.Equal(p.SubmittedAt) {
		t.Errorf("SubmittedAt = %v, want %v", got.SubmittedAt, p.SubmittedAt)
	}

	if err := s.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "m1"); err == nil {
		t.Fatal("Get after Delete: want error")
	}
}

func TestGetMissingReturnsPendingNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "no-such")
	var nf *protocol.PendingNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Get = %v, want *protocol.PendingNotFoundError", err)
	}
	if nf.ID != "no-such" {
		t.Errorf("ID = %q", nf.ID)
	}
}

func TestDeleteMissingIsNoError(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete(context.Background(), "never-written"); err != nil {
		t.Fatalf("Delete absent row: %v", err)
	}
}

func TestListOrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2", "m3"} {
		p := pending(id, "agent-1")
		p.SubmittedAt = base.Add(time.Duration(i) * time.Minute)
		if id == "m3" {
			p.AgentID = "agent-2"
		}
		if err := s.Put(ctx, p); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "m1" || all[2].ID != "m3" {
		t.Errorf("List = %+v, want m1,m2,m3 oldest first", all)
	}

	mine, err := s.ListByAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("ListByAgent: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("ListByAgent = %d rows, want 2", len(mine))
	}
}

func TestPutOverwritesSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, pending("m1", "agent-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	p2 := pending("m1", "agent-1")
	p2.Text = "second attempt"
	if err := s.Put(ctx, p2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	got, _ := s.Get(ctx, "m1")
	if got.Text != "second attempt" {
		t.Errorf("Text = %q", got.Text)
	}
}
