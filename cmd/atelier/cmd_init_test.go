package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCommand executes the root command with args, ATELIER_HOME already
// pointed at a temp dir by the caller.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInitCommand_CreatesStateAndConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ATELIER_HOME", home)
	t.Setenv("ATELIER_DB_PATH", "")

	out, err := runCommand(t, "init")
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}

	if _, err := os.Stat(filepath.Join(home, "state.db")); err != nil {
		t.Errorf("state.db not created: %v", err)
	}
	cfgPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("config.yaml not created: %v", err)
	}
	if !strings.Contains(out, "wrote example config") {
		t.Errorf("output missing config notice:\n%s", out)
	}
}

func TestInitCommand_LeavesExistingConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ATELIER_HOME", home)
	t.Setenv("ATELIER_DB_PATH", "")

	cfgPath := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("context: events\n"), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	out, err := runCommand(t, "init")
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "left untouched") {
		t.Errorf("expected untouched notice:\n%s", out)
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != "context: events\n" {
		t.Errorf("existing config was overwritten: %q", data)
	}
}
