// Package pipeline implements the task submission/result coordinator that
// backs the studio assistant: it submits prompts to the backend, records
// every in-flight request durably before the network call, correlates
// asynchronous results back to the displayed conversation, and applies the
// result state machine (clarification, api_call, success, error).
//
// The Coordinator serializes Submit, OnResult, Retry, and RevertTo under one
// mutex, mirroring the single-threaded event loop the UI runs on: each store
// mutation is atomic with respect to the others, and no locking is needed
// anywhere else.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"atelier/pkg/eventlog"
	"atelier/pkg/outbox"
	"atelier/pkg/protocol"
	"atelier/pkg/revert"
)

// Backend is the submission surface the coordinator needs. *backend.Client
// satisfies it.
type Backend interface {
	SubmitTask(ctx context.Context, prompt string, scope protocol.Scope, agentID, pageID string) (string, error)
	Do(ctx context.Context, method, endpoint string, body json.RawMessage) (string, error)
	GetDocument(ctx context.Context, scope protocol.Scope) (json.RawMessage, error)
}

// Reverter executes checkpoint reverts. *revert.Coordinator satisfies it.
type Reverter interface {
	RevertTo(ctx context.Context, scope protocol.Scope, agentID string, messages []protocol.Message, index int) (*revert.Outcome, error)
	Reverting() bool
}

// Observer receives the notifications the coordinator produces for the rest
// of the application. Callbacks run outside the coordinator's lock but must
// not call back into it.
type Observer interface {
	// DocumentReplaced fires when the site document changed wholesale: a
	// success result, an api_call reload, or a checkpoint restore.
	DocumentReplaced(doc json.RawMessage)

	// ProcessingChanged fires when the coordinator starts or stops waiting
	// for task results.
	ProcessingChanged(active bool)
}

// taskRefs correlates a backend task id to the UI state it must update.
type taskRefs struct {
	loadingMessageID string
	userMessageID    string
}

// Coordinator ties outbox, backend, registry, and revert together.
type Coordinator struct {
	mu         sync.Mutex
	scope      protocol.Scope
	agentID    string
	pageID     string
	messages   []protocol.Message
	tasks      map[string]taskRefs
	processing bool
	draft      string

	store     *outbox.Store
	backend   Backend
	reverter  Reverter
	observers []Observer
	events    *eventlog.Writer // optional
	log       *slog.Logger
}

// Config holds Coordinator construction parameters. Events may be nil.
type Config struct {
	Scope    protocol.Scope
	AgentID  string
	PageID   string
	Store    *outbox.Store
	Backend  Backend
	Reverter Reverter
	Events   *eventlog.Writer
	Log      *slog.Logger
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		scope:    cfg.Scope,
		agentID:  cfg.AgentID,
		pageID:   cfg.PageID,
		tasks:    make(map[string]taskRefs),
		store:    cfg.Store,
		backend:  cfg.Backend,
		reverter: cfg.Reverter,
		events:   cfg.Events,
		log:      log,
	}
}

// Subscribe registers an observer.
func (c *Coordinator) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Messages returns a copy of the displayed conversation.
func (c *Coordinator) Messages() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.messages...)
}

// SetMessages replaces the displayed conversation, e.g. after a history load.
func (c *Coordinator) SetMessages(msgs []protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append([]protocol.Message(nil), msgs...)
}

// SetAgent switches the agent new submissions go to.
func (c *Coordinator) SetAgent(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agentID = agentID
}

// SetPage records the page the user is editing; it is sent as task context.
func (c *Coordinator) SetPage(pageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageID = pageID
}

// Processing reports whether any task is awaiting its result.
func (c *Coordinator) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Draft returns and clears the recalled input text set by the last revert.
func (c *Coordinator) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	c.draft = ""
	return d
}

// Submit sends a prompt to the assistant. Fire-and-forget: the result arrives
// later through OnResult. Submission failures never return an error; they
// surface as a retryable chat message and the durable pending record stays.
func (c *Coordinator) Submit(ctx context.Context, text string) {
	c.mu.Lock()
	notify := c.submitLocked(ctx, text, c.agentID)
	c.mu.Unlock()
	for _, fn := range notify {
		fn()
	}
}

// submitLocked is the shared submission path for Submit and Retry. The
// pending record is written before the network call so a crash between the
// two still leaves a recoverable record.
func (c *Coordinator) submitLocked(ctx context.Context, text, agentID string) []func() {
	userID := uuid.New().String()
	c.messages = append(c.messages, protocol.Message{
		ID:     userID,
		Sender: protocol.SenderUser,
		Text:   text,
	})

	pending := protocol.PendingMessage{
		ID:          userID,
		Text:        text,
		AgentID:     agentID,
		SiteID:      c.scope.SiteID,
		Context:     c.scope.Context,
		SubmittedAt: time.Now().UTC(),
	}
	if err := c.store.Put(ctx, pending); err != nil {
		c.log.Warn("outbox write failed", "message_id", userID, "error", err)
	}
	c.logEvent(ctx, "submit", "", agentID, text)

	taskID, err := c.backend.SubmitTask(ctx, text, c.scope, agentID, c.pageID)
	if err != nil {
		// The pending record stays; the message remains retryable.
		c.log.Warn("task submission failed", "message_id", userID, "error", err)
		c.logEvent(ctx, "submit_failed", "", agentID, err.Error())
		c.messages = append(c.messages, protocol.Message{
			ID:      uuid.New().String(),
			Sender:  protocol.SenderAssistant,
			Text:    "Your message couldn't be sent. Select it to retry.",
			RetryID: userID,
		})
		return nil
	}

	loadingID := uuid.New().String()
	c.messages = append(c.messages, protocol.Message{
		ID:      loadingID,
		Sender:  protocol.SenderAssistant,
		Loading: true,
	})
	c.tasks[taskID] = taskRefs{loadingMessageID: loadingID, userMessageID: userID}
	return c.setProcessingLocked(true)
}

// OnResult is invoked by the delivery channel (or polling fallback) when a
// task terminates. Results for unknown task ids are discarded; invoking it
// twice with the same task id performs the update once. Results whose UI
// anchors were removed by an earlier revert still clear the registry and the
// pending record, then touch nothing.
func (c *Coordinator) OnResult(ctx context.Context, res protocol.TaskResult) {
	c.mu.Lock()
	notify := c.onResultLocked(ctx, res)
	c.mu.Unlock()
	for _, fn := range notify {
		fn()
	}
}

func (c *Coordinator) onResultLocked(ctx context.Context, res protocol.TaskResult) []func() {
	refs, ok := c.tasks[res.TaskID]
	if !ok {
		c.log.Debug("discarding result for unknown task", "task_id", res.TaskID)
		return nil
	}
	delete(c.tasks, res.TaskID)

	// The round trip is acknowledged regardless of the edit's outcome.
	if err := c.store.Delete(ctx, refs.userMessageID); err != nil {
		c.log.Warn("outbox delete failed", "message_id", refs.userMessageID, "error", err)
	}
	c.logEvent(ctx, "result", res.TaskID, c.agentID, string(res.Kind))

	// Retro-fit the history record id onto the originating user message so
	// the turn becomes a valid revert anchor. A no-op if the message was
	// reverted away.
	if res.DBMessageID != "" {
		if i := c.indexOf(refs.userMessageID); i >= 0 {
			c.messages[i].DBMessageID = res.DBMessageID
		}
	}

	var notify []func()
	li := c.indexOf(refs.loadingMessageID)
	switch res.Kind {
	case protocol.ResultClarification:
		c.resolveLoading(li, res.Question, "")
	case protocol.ResultError:
		c.resolveLoading(li, res.Error, "")
	case protocol.ResultSuccess:
		c.resolveLoading(li, res.Explanation, "")
		doc := res.Document
		notify = append(notify, c.notifyDocument(doc)...)
	case protocol.ResultAPICall:
		notify = append(notify, c.performAPICall(ctx, res, li)...)
	}

	if len(c.tasks) == 0 {
		notify = append(notify, c.setProcessingLocked(false)...)
	}
	return notify
}

// performAPICall executes the operation described by an api_call result and
// renders a summary in place of the loading message.
func (c *Coordinator) performAPICall(ctx context.Context, res protocol.TaskResult, loadingIndex int) []func() {
	entityID, err := c.backend.Do(ctx, res.Method, res.Endpoint, res.Body)
	if err != nil {
		c.log.Warn("api_call execution failed", "task_id", res.TaskID,
			"method", res.Method, "endpoint", res.Endpoint, "error", err)
		c.resolveLoading(loadingIndex, "The requested operation failed. Please try again.", "")
		return nil
	}

	text := res.Explanation
	if text == "" {
		text = "Done."
	}
	c.resolveLoading(loadingIndex, text, entityID)

	// The operation mutated backend state; for document-bearing contexts,
	// reload and announce the authoritative document.
	if !protocol.ContextFor(c.scope.Context).Checkpoints {
		return nil
	}
	doc, err := c.backend.GetDocument(ctx, c.scope)
	if err != nil {
		c.log.Warn("document reload after api_call failed", "error", err)
		return nil
	}
	return c.notifyDocument(doc)
}

// Retry re-submits a pending message. The pending record is removed first;
// re-submission allocates a fresh local message id and the old one is
// abandoned, along with its unsent message and retry hint in the displayed
// list.
func (c *Coordinator) Retry(ctx context.Context, pendingID string) error {
	c.mu.Lock()
	p, err := c.store.Get(ctx, pendingID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.store.Delete(ctx, pendingID); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("clear pending %s: %w", pendingID, err)
	}
	c.removeAbandoned(pendingID)
	c.logEvent(ctx, "retry", "", p.AgentID, p.Text)
	notify := c.submitLocked(ctx, p.Text, p.AgentID)
	c.mu.Unlock()
	for _, fn := range notify {
		fn()
	}
	return nil
}

// Discard drops a pending message without re-submitting it.
func (c *Coordinator) Discard(ctx context.Context, pendingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.store.Get(ctx, pendingID); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, pendingID); err != nil {
		return fmt.Errorf("discard pending %s: %w", pendingID, err)
	}
	c.removeAbandoned(pendingID)
	c.logEvent(ctx, "discard", "", c.agentID, pendingID)
	return nil
}

// RevertTo rewinds the conversation and document to the state before
// messages[index]. On failure the displayed list is untouched and an
// assistant-styled message explains what went wrong.
func (c *Coordinator) RevertTo(ctx context.Context, index int) error {
	c.mu.Lock()
	snapshot := append([]protocol.Message(nil), c.messages...)

	out, err := c.reverter.RevertTo(ctx, c.scope, c.agentID, snapshot, index)
	if err != nil {
		c.logEvent(ctx, "revert_failed", "", c.agentID, err.Error())
		c.messages = append(c.messages, protocol.Message{
			ID:     uuid.New().String(),
			Sender: protocol.SenderAssistant,
			Text:   "The conversation couldn't be rewound. Nothing was changed.",
		})
		c.mu.Unlock()
		return err
	}

	c.messages = out.Messages
	c.draft = out.RecallText
	c.logEvent(ctx, "revert", "", c.agentID, fmt.Sprintf("index=%d local_only=%v", index, out.LocalOnly))

	// A revert cancels the notion of waiting for a response. Registry
	// entries stay so a physically in-flight result can still clear its
	// pending record; its UI anchors are gone, so it updates nothing.
	var notify []func()
	notify = append(notify, c.setProcessingLocked(false)...)
	if out.Document != nil {
		notify = append(notify, c.notifyDocument(out.Document)...)
	}
	c.mu.Unlock()
	for _, fn := range notify {
		fn()
	}
	return nil
}

// Reverting reports whether a checkpoint revert is in flight. The UI holds
// off history reloads while it is true, so the truncated prefix is not
// clobbered by a concurrent refresh.
func (c *Coordinator) Reverting() bool {
	return c.reverter != nil && c.reverter.Reverting()
}

// --- Locked helpers ---

// indexOf returns the position of a message id, or -1.
func (c *Coordinator) indexOf(messageID string) int {
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// resolveLoading replaces the loading message at index i. A negative index
// means the message was reverted away; the update is skipped.
func (c *Coordinator) resolveLoading(i int, text, entityID string) {
	if i < 0 {
		return
	}
	c.messages[i].Text = text
	c.messages[i].Loading = false
	if entityID != "" {
		c.messages[i].EntityID = entityID
	}
}

// removeAbandoned drops the unsent user message and any retry-hint message
// for a pending id.
func (c *Coordinator) removeAbandoned(pendingID string) {
	kept := c.messages[:0]
	for _, m := range c.messages {
		if m.ID == pendingID || m.RetryID == pendingID {
			continue
		}
		kept = append(kept, m)
	}
	c.messages = kept
}

// setProcessingLocked updates the processing flag and returns the observer
// notifications to fire after unlock.
func (c *Coordinator) setProcessingLocked(active bool) []func() {
	if c.processing == active {
		return nil
	}
	c.processing = active
	var notify []func()
	for _, o := range c.observers {
		o := o
		notify = append(notify, func() { o.ProcessingChanged(active) })
	}
	return notify
}

// notifyDocument returns DocumentReplaced notifications for all observers.
func (c *Coordinator) notifyDocument(doc json.RawMessage) []func() {
	var notify []func()
	for _, o := range c.observers {
		o := o
		notify = append(notify, func() { o.DocumentReplaced(doc) })
	}
	return notify
}

// logEvent appends to the event log, if one is attached. Log failures are
// observability-only and ignored.
func (c *Coordinator) logEvent(ctx context.Context, eventType, taskID, agentID, payload string) {
	if c.events == nil {
		return
	}
	if err := c.events.Log(ctx, eventType, "pipeline", taskID, agentID, payload); err != nil {
		c.log.Debug("event log write failed", "type", eventType, "error", err)
	}
}
