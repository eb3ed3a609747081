package protocol

import (
	"encoding/json"
	"fmt"
)

// ResultKind is the terminal state of a backend task. Exactly one result of
// one kind is expected per task id.
type ResultKind string

// Result kind constants.
const (
	ResultClarification ResultKind = "clarification" // assistant needs more input, no mutation
	ResultAPICall       ResultKind = "api_call"      // client must perform the described call itself
	ResultSuccess       ResultKind = "success"       // document replaced with Result.Document
	ResultError         ResultKind = "error"         // task failed, no mutation
)

// TaskResult is one frame delivered on the channel (or fetched by the polling
// fallback) when a task terminates. Kind-specific fields:
//
//	clarification: Question
//	api_call:      Method, Endpoint, Body
//	success:       Explanation, Document
//	error:         Error
//
// DBMessageID, when set, is retro-fitted onto the originating user message so
// the turn becomes a valid revert anchor.
type TaskResult struct {
	TaskID      string          `json:"task_id"`
	Kind        ResultKind      `json:"status"`
	Explanation string          `json:"explanation,omitempty"`
	Question    string          `json:"question,omitempty"`
	Error       string          `json:"error,omitempty"`
	Method      string          `json:"method,omitempty"`
	Endpoint    string          `json:"endpoint,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Document    json.RawMessage `json:"document,omitempty"`
	DBMessageID string          `json:"db_message_id,omitempty"`
}

// Validate checks kind/field coherence. Frames that fail validation are
// dropped by the channel, never dispatched.
func (r TaskResult) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("task result missing task_id")
	}
	switch r.Kind {
	case ResultClarification:
		if r.Question == "" {
			return fmt.Errorf("clarification result for task %s missing question", r.TaskID)
		}
	case ResultAPICall:
		if r.Method == "" || r.Endpoint == "" {
			return fmt.Errorf("api_call result for task %s missing method or endpoint", r.TaskID)
		}
	case ResultSuccess:
		if len(r.Document) == 0 {
			return fmt.Errorf("success result for task %s missing document", r.TaskID)
		}
	case ResultError:
		if r.Error == "" {
			return fmt.Errorf("error result for task %s missing error text", r.TaskID)
		}
	default:
		return fmt.Errorf("task result %s has unknown kind %q", r.TaskID, r.Kind)
	}
	return nil
}

// DecodeResult parses and validates one channel frame.
func DecodeResult(data []byte) (TaskResult, error) {
	var r TaskResult
	if err := json.Unmarshal(data, &r); err != nil {
		return TaskResult{}, fmt.Errorf("decode result frame: %w", err)
	}
	if err := r.Validate(); err != nil {
		return TaskResult{}, err
	}
	return r, nil
}
