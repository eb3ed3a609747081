package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPrettyJSON_Indents(t *testing.T) {
	raw := json.RawMessage(`{"pages":[{"id":"p1"}],"title":"Home"}`)
	out := prettyJSON(raw)

	if !strings.Contains(out, "\n") {
		t.Errorf("expected multi-line output, got %q", out)
	}
	if !strings.Contains(out, `"title": "Home"`) {
		t.Errorf("missing field in output:\n%s", out)
	}
}

func TestPrettyJSON_InvalidPassesThrough(t *testing.T) {
	raw := json.RawMessage(`not json`)
	if got := prettyJSON(raw); got != "not json" {
		t.Errorf("invalid input should pass through, got %q", got)
	}
}
