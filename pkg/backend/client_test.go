package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"atelier/pkg/protocol"
)

func TestSubmitTask(t *testing.T) {
	var gotBody submitTaskRequest
	var gotClientKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/assistant/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotClientKey = r.Header.Get("X-Atelier-Client")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"task_id":"task-77"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "client-key-1")
	scope := protocol.Scope{SiteID: "site-1", Context: protocol.ContextStudio}
	taskID, err := c.SubmitTask(context.Background(), "add a FAQ section", scope, "agent-1", "page-home")
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if taskID != "task-77" {
		t.Errorf("taskID = %q", taskID)
	}
	if gotClientKey != "client-key-1" {
		t.Errorf("client key header = %q", gotClientKey)
	}
	if gotBody.Prompt != "add a FAQ section" || gotBody.AgentID != "agent-1" || gotBody.PageID != "page-home" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestSubmitTaskEmptyTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	if _, err := c.SubmitTask(context.Background(), "x", protocol.Scope{SiteID: "s", Context: "studio"}, "a", ""); err == nil {
		t.Fatal("expected error for missing task id")
	}
}

func TestGetAgentDetailsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.GetAgentDetails(context.Background(), "agent-gone")
	var nf *protocol.AgentNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *protocol.AgentNotFoundError", err)
	}
	if nf.AgentID != "agent-gone" {
		t.Errorf("AgentID = %q", nf.AgentID)
	}
}

func TestListCheckpointsPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/site-1/checkpoints" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"checkpoints":[
			{"id":"cp-new","label":"Before: add FAQ"},
			{"id":"cp-old","label":"Before: recolor hero"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	cps, err := c.ListCheckpoints(context.Background(), protocol.Scope{SiteID: "site-1", Context: protocol.ContextStudio})
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 2 || cps[0].ID != "cp-new" || cps[1].ID != "cp-old" {
		t.Errorf("checkpoints = %+v, want backend order preserved", cps)
	}
}

func TestDoReturnsEntityID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/calendar/events" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"entity_id":"evt-42"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	entityID, err := c.Do(context.Background(), http.MethodPost, "/v1/calendar/events", json.RawMessage(`{"title":"Open day"}`))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if entityID != "evt-42" {
		t.Errorf("entityID = %q", entityID)
	}
}

func TestStatusErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.GetDocument(context.Background(), protocol.Scope{SiteID: "site-1", Context: protocol.ContextStudio})
	if err == nil {
		t.Fatal("expected error")
	}
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusBadGateway {
		t.Errorf("err = %v", err)
	}
}
