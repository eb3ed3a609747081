package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"atelier/pkg/eventlog"
)

func setupLogsDB(t *testing.T) *eventlog.Reader {
	t.Helper()

	db, err := openStateDB(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("openStateDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	w := eventlog.NewWriter(db)
	ctx := context.Background()
	if err := w.Log(ctx, "submit", "pipeline", "task-1", "agent-1", "build a page"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := w.Log(ctx, "result", "channel", "task-1", "agent-1", "success"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := w.Log(ctx, "submit", "pipeline", "task-2", "agent-2", "add a section"); err != nil {
		t.Fatalf("log: %v", err)
	}

	return eventlog.NewReader(db)
}

func TestPrintLogs_All(t *testing.T) {
	reader := setupLogsDB(t)

	var buf bytes.Buffer
	if err := printLogs(context.Background(), reader, &buf, logsConfig{tail: 20}); err != nil {
		t.Fatalf("printLogs: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"submit", "result", "task-1", "task-2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// Chronological order: the first submit comes before the result.
	if strings.Index(out, "build a page") > strings.Index(out, "success") {
		t.Errorf("events not in chronological order:\n%s", out)
	}
}

func TestPrintLogs_AgentFilter(t *testing.T) {
	reader := setupLogsDB(t)

	var buf bytes.Buffer
	cfg := logsConfig{tail: 20, agentID: "agent-2"}
	if err := printLogs(context.Background(), reader, &buf, cfg); err != nil {
		t.Fatalf("printLogs: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "task-2") {
		t.Errorf("output missing agent-2 event:\n%s", out)
	}
	if strings.Contains(out, "task-1") {
		t.Errorf("filter leaked agent-1 events:\n%s", out)
	}
}

func TestPrintLogs_Empty(t *testing.T) {
	db, err := openStateDB(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("openStateDB: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := printLogs(context.Background(), eventlog.NewReader(db), &buf, logsConfig{tail: 20}); err != nil {
		t.Fatalf("printLogs: %v", err)
	}
	if !strings.Contains(buf.String(), "no events found") {
		t.Errorf("expected empty message, got: %s", buf.String())
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shorten long = %q", got)
	}
	if got := shorten("short"); got != "short" {
		t.Errorf("shorten short = %q", got)
	}
}

func TestReverseEvents(t *testing.T) {
	events := []eventlog.Event{{ID: 3}, {ID: 2}, {ID: 1}}
	reverseEvents(events)
	for i, want := range []int64{1, 2, 3} {
		if events[i].ID != want {
			t.Errorf("events[%d].ID = %d, want %d", i, events[i].ID, want)
		}
	}
}
