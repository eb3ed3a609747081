package main

import (
	"bytes"
	"strings"
	"testing"

	"atelier/pkg/protocol"
)

func TestFirstLine(t *testing.T) {
	if got := firstLine("short prompt"); got != "short prompt" {
		t.Errorf("firstLine = %q", got)
	}
	if got := firstLine("first\nsecond"); got != "first ..." {
		t.Errorf("firstLine multiline = %q", got)
	}
	long := strings.Repeat("x", 100)
	if got := firstLine(long); !strings.HasSuffix(got, "...") || len(got) >= 100 {
		t.Errorf("firstLine long = %q", got)
	}
}

func TestPrintRevertPlan_CheckpointedContext(t *testing.T) {
	scope := protocol.Scope{SiteID: "site-1", Context: "studio"}
	messages := []protocol.Message{
		{Sender: protocol.SenderUser, Text: "keep this", DBMessageID: "db-0"},
		{Sender: protocol.SenderAssistant, Text: "done", DBMessageID: "db-0"},
		{Sender: protocol.SenderUser, Text: "make it blue", DBMessageID: "db-1"},
		{Sender: protocol.SenderAssistant, Text: "made it blue", DBMessageID: "db-1"},
	}

	var buf bytes.Buffer
	printRevertPlan(&buf, scope, messages, 2)
	out := buf.String()

	if !strings.Contains(out, "would remove 2 message(s)") {
		t.Errorf("missing removal count:\n%s", out)
	}
	if !strings.Contains(out, "make it blue") {
		t.Errorf("missing tail message:\n%s", out)
	}
	if strings.Contains(out, "keep this") {
		t.Errorf("plan lists messages outside the tail:\n%s", out)
	}
	// One committed user turn in the tail restores checkpoint position 0.
	if !strings.Contains(out, "position 0") {
		t.Errorf("missing checkpoint position:\n%s", out)
	}
}

func TestPrintRevertPlan_SupportContextNoCheckpointLine(t *testing.T) {
	scope := protocol.Scope{Context: "support"}
	messages := []protocol.Message{
		{Sender: protocol.SenderUser, Text: "hello", DBMessageID: "db-0"},
	}

	var buf bytes.Buffer
	printRevertPlan(&buf, scope, messages, 0)

	if strings.Contains(buf.String(), "checkpoint") {
		t.Errorf("support context should not mention checkpoints:\n%s", buf.String())
	}
}
