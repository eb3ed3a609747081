package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"atelier/pkg/outbox"
	"atelier/pkg/protocol"
)

func seedPending(t *testing.T, home string) {
	t.Helper()

	db, err := openStateDB(filepath.Join(home, "state.db"))
	if err != nil {
		t.Fatalf("openStateDB: %v", err)
	}
	defer db.Close()

	store := outbox.New(db)
	err = store.Put(context.Background(), protocol.PendingMessage{
		ID:          "msg-1",
		Text:        "make the header blue",
		AgentID:     "agent-1",
		SiteID:      "site-1",
		Context:     "studio",
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}
}

func TestPendingCommand_List(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ATELIER_HOME", home)
	t.Setenv("ATELIER_DB_PATH", "")
	seedPending(t, home)

	out, err := runCommand(t, "pending")
	if err != nil {
		t.Fatalf("pending: %v\n%s", err, out)
	}
	if !strings.Contains(out, "msg-1") || !strings.Contains(out, "make the header blue") {
		t.Errorf("output missing pending entry:\n%s", out)
	}
	if !strings.Contains(out, "site-1|studio") {
		t.Errorf("output missing scope key:\n%s", out)
	}
}

func TestPendingCommand_Empty(t *testing.T) {
	t.Setenv("ATELIER_HOME", t.TempDir())
	t.Setenv("ATELIER_DB_PATH", "")

	out, err := runCommand(t, "pending")
	if err != nil {
		t.Fatalf("pending: %v\n%s", err, out)
	}
	if !strings.Contains(out, "no pending requests") {
		t.Errorf("expected empty notice:\n%s", out)
	}
}

func TestPendingCommand_Discard(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ATELIER_HOME", home)
	t.Setenv("ATELIER_DB_PATH", "")
	seedPending(t, home)

	out, err := runCommand(t, "pending", "--discard", "msg-1")
	if err != nil {
		t.Fatalf("discard: %v\n%s", err, out)
	}
	if !strings.Contains(out, "discarded msg-1") {
		t.Errorf("expected discard notice:\n%s", out)
	}

	out, err = runCommand(t, "pending")
	if err != nil {
		t.Fatalf("pending after discard: %v\n%s", err, out)
	}
	if !strings.Contains(out, "no pending requests") {
		t.Errorf("entry survived discard:\n%s", out)
	}
}

func TestPendingCommand_DiscardUnknown(t *testing.T) {
	t.Setenv("ATELIER_HOME", t.TempDir())
	t.Setenv("ATELIER_DB_PATH", "")

	_, err := runCommand(t, "pending", "--discard", "nope")
	if err == nil {
		t.Fatal("expected error for unknown pending id")
	}
	var notFound *protocol.PendingNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected PendingNotFoundError, got %v", err)
	}
}
