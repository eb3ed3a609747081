package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTaskResultValidate(t *testing.T) {
	tests := []struct {
		name    string
		result  TaskResult
		wantErr string // substring; empty means valid
	}{
		{
			name:   "valid clarification",
			result: TaskResult{TaskID: "t1", Kind: ResultClarification, Question: "which page?"},
		},
		{
			name:    "clarification without question",
			result:  TaskResult{TaskID: "t1", Kind: ResultClarification},
			wantErr: "missing question",
		},
		{
			name:   "valid api_call",
			result: TaskResult{TaskID: "t2", Kind: ResultAPICall, Method: "POST", Endpoint: "/v1/events", Body: json.RawMessage(`{}`)},
		},
		{
			name:    "api_call without endpoint",
			result:  TaskResult{TaskID: "t2", Kind: ResultAPICall, Method: "POST"},
			wantErr: "missing method or endpoint",
		},
		{
			name:   "valid success",
			result: TaskResult{TaskID: "t3", Kind: ResultSuccess, Document: json.RawMessage(`{"sections":[]}`)},
		},
		{
			name:    "success without document",
			result:  TaskResult{TaskID: "t3", Kind: ResultSuccess, Explanation: "done"},
			wantErr: "missing document",
		},
		{
			name:   "valid error",
			result: TaskResult{TaskID: "t4", Kind: ResultError, Error: "model overloaded"},
		},
		{
			name:    "unknown kind",
			result:  TaskResult{TaskID: "t5", Kind: "partial"},
			wantErr: "unknown kind",
		},
		{
			name:    "missing task id",
			result:  TaskResult{Kind: ResultError, Error: "x"},
			wantErr: "missing task_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeResult(t *testing.T) {
	frame := []byte(`{"task_id":"t1","status":"success","explanation":"hero updated","document":{"sections":[]},"db_message_id":"db-7"}`)
	r, err := DecodeResult(frame)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if r.Kind != ResultSuccess || r.TaskID != "t1" || r.DBMessageID != "db-7" {
		t.Errorf("decoded %+v", r)
	}
}

func TestDecodeResultMalformed(t *testing.T) {
	if _, err := DecodeResult([]byte(`{not json`)); err == nil {
		t.Fatal("expected decode error for malformed frame")
	}
	// Well-formed JSON that fails validation is also rejected.
	if _, err := DecodeResult([]byte(`{"task_id":"t1","status":"success"}`)); err == nil {
		t.Fatal("expected validation error for success frame without document")
	}
}
