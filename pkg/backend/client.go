// Package backend implements the HTTP client for the Atelier platform API:
// task submission, agent and history management, checkpoints, documents, and
// side-effect entities. The coordinator packages consume narrow interfaces;
// Client satisfies all of them.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"atelier/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// Client talks to the Atelier platform API.
type Client struct {
	baseURL   string
	clientKey string
	httpc     *http.Client
}

// New creates a Client for the given base URL. clientKey is the stable
// client/session identity sent with every request; the channel endpoint is
// keyed by the same value.
func New(baseURL, clientKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		clientKey: clientKey,
		httpc:     &http.Client{Timeout: defaultTimeout},
	}
}

// SetHTTPClient overrides the underlying HTTP client (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpc = hc
}

// --- Task submission ---

// submitTaskRequest is the body for POST /assistant/tasks.
type submitTaskRequest struct {
	Prompt  string `json:"prompt"`
	SiteID  string `json:"site_id,omitempty"`
	Context string `json:"context"`
	AgentID string `json:"agent_id"`
	PageID  string `json:"page_id,omitempty"`
}

// SubmitTask sends a prompt to the assistant. The response carries only the
// task id; the result arrives later on the delivery channel.
func (c *Client) SubmitTask(ctx context.Context, prompt string, scope protocol.Scope, agentID, pageID string) (string, error) {
	req := submitTaskRequest{
		Prompt:  prompt,
		SiteID:  scope.SiteID,
		Context: scope.Context,
		AgentID: agentID,
		PageID:  pageID,
	}
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/assistant/tasks", req, &resp); err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("submit task: backend returned no task id")
	}
	return resp.TaskID, nil
}

// --- Agents and history ---

// CreateAgent creates a new conversation agent for the scope.
func (c *Client) CreateAgent(ctx context.Context, scope protocol.Scope) (protocol.Agent, error) {
	req := struct {
		SiteID  string `json:"site_id,omitempty"`
		Context string `json:"context"`
	}{scope.SiteID, scope.Context}
	var agent protocol.Agent
	if err := c.doJSON(ctx, http.MethodPost, "/assistant/agents", req, &agent); err != nil {
		return protocol.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	agent.Scope = scope
	return agent, nil
}

// GetAgentDetails fetches an agent by id. A 404 maps to
// *protocol.AgentNotFoundError so callers can evict stale cache entries.
func (c *Client) GetAgentDetails(ctx context.Context, agentID string) (protocol.Agent, error) {
	var agent protocol.Agent
	err := c.doJSON(ctx, http.MethodGet, "/assistant/agents/"+agentID, nil, &agent)
	if err != nil {
		if isNotFound(err) {
			return protocol.Agent{}, &protocol.AgentNotFoundError{AgentID: agentID}
		}
		return protocol.Agent{}, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	return agent, nil
}

// GetHistory fetches up to limit most recent request/response pairs.
func (c *Client) GetHistory(ctx context.Context, agentID string, limit int) ([]protocol.HistoryPair, error) {
	var resp struct {
		Messages []protocol.HistoryPair `json:"messages"`
	}
	path := fmt.Sprintf("/assistant/agents/%s/history?limit=%d", agentID, limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, &protocol.AgentNotFoundError{AgentID: agentID}
		}
		return nil, fmt.Errorf("get history for %s: %w", agentID, err)
	}
	return resp.Messages, nil
}

// ResetHistory clears all server-side history for an agent. The agent
// identity survives.
func (c *Client) ResetHistory(ctx context.Context, agentID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/assistant/agents/"+agentID+"/history", nil, nil); err != nil {
		return fmt.Errorf("reset history for %s: %w", agentID, err)
	}
	return nil
}

// MarkHistoryDeletedFrom marks the history record and everything after it
// deleted server-side. Best-effort from the revert coordinator's view.
func (c *Client) MarkHistoryDeletedFrom(ctx context.Context, agentID, dbMessageID string) error {
	req := struct {
		From string `json:"from"`
	}{dbMessageID}
	if err := c.doJSON(ctx, http.MethodPost, "/assistant/agents/"+agentID+"/history/delete-from", req, nil); err != nil {
		return fmt.Errorf("mark history deleted from %s: %w", dbMessageID, err)
	}
	return nil
}

// --- Checkpoints and documents ---

// ListCheckpoints returns the scope's checkpoints, newest first, exactly as
// the backend orders them.
func (c *Client) ListCheckpoints(ctx context.Context, scope protocol.Scope) ([]protocol.Checkpoint, error) {
	var resp struct {
		Checkpoints []protocol.Checkpoint `json:"checkpoints"`
	}
	path := "/sites/" + scope.SiteID + "/checkpoints"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return resp.Checkpoints, nil
}

// RestoreCheckpoint restores the document to the given checkpoint and returns
// the restored document.
func (c *Client) RestoreCheckpoint(ctx context.Context, scope protocol.Scope, checkpointID string) (json.RawMessage, error) {
	var resp struct {
		Document json.RawMessage `json:"document"`
	}
	path := "/sites/" + scope.SiteID + "/checkpoints/" + checkpointID + "/restore"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("restore checkpoint %s: %w", checkpointID, err)
	}
	return resp.Document, nil
}

// GetCheckpointDocument fetches the document held by a checkpoint without
// restoring it. Used for restore previews.
func (c *Client) GetCheckpointDocument(ctx context.Context, scope protocol.Scope, checkpointID string) (json.RawMessage, error) {
	var resp struct {
		Document json.RawMessage `json:"document"`
	}
	path := "/sites/" + scope.SiteID + "/checkpoints/" + checkpointID
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get checkpoint %s: %w", checkpointID, err)
	}
	return resp.Document, nil
}

// GetDocument fetches the authoritative site document.
func (c *Client) GetDocument(ctx context.Context, scope protocol.Scope) (json.RawMessage, error) {
	var resp struct {
		Document json.RawMessage `json:"document"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/sites/"+scope.SiteID+"/document", nil, &resp); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return resp.Document, nil
}

// --- Side-effect entities ---

// DeleteEntity removes an externally created entity (e.g. a calendar event)
// during side-effect revert cleanup.
func (c *Client) DeleteEntity(ctx context.Context, entityID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/entities/"+entityID, nil, nil); err != nil {
		return fmt.Errorf("delete entity %s: %w", entityID, err)
	}
	return nil
}

// --- api_call result execution ---

// apiCallResponse is the envelope for a pipeline-performed api_call result.
type apiCallResponse struct {
	EntityID string `json:"entity_id,omitempty"`
}

// Do performs an operation described by an api_call task result and returns
// the created entity id, if the backend reports one.
func (c *Client) Do(ctx context.Context, method, endpoint string, body json.RawMessage) (string, error) {
	var resp apiCallResponse
	if err := c.doRaw(ctx, method, endpoint, []byte(body), &resp); err != nil {
		return "", fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return resp.EntityID, nil
}

// --- Polling fallback ---

// PollResults fetches terminal results for this client that have not been
// delivered on the channel. Used by the channel.Poller fallback transport.
func (c *Client) PollResults(ctx context.Context) ([]protocol.TaskResult, error) {
	var resp struct {
		Results []protocol.TaskResult `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/assistant/results", nil, &resp); err != nil {
		return nil, fmt.Errorf("poll results: %w", err)
	}
	return resp.Results, nil
}

// --- HTTP plumbing ---

// statusError carries a non-2xx response status for typed inspection.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("backend returned %d", e.code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	return c.doRaw(ctx, method, path, body, out)
}

func (c *Client) doRaw(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Atelier-Client", c.clientKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
