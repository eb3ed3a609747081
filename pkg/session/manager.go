// Package session owns agent identity: which conversation agent backs each
// (site, context) scope, the cached mapping between the two, and loading and
// resetting an agent's message history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"atelier/pkg/protocol"
)

// AgentAPI is the backend surface the manager needs. *backend.Client
// satisfies it.
type AgentAPI interface {
	CreateAgent(ctx context.Context, scope protocol.Scope) (protocol.Agent, error)
	GetAgentDetails(ctx context.Context, agentID string) (protocol.Agent, error)
	GetHistory(ctx context.Context, agentID string, limit int) ([]protocol.HistoryPair, error)
	ResetHistory(ctx context.Context, agentID string) error
}

// Manager resolves, switches, and caches agents per scope. Cache entries are
// keyed by Scope.Key, so concurrent scopes never overwrite each other.
// Concurrent processes sharing the same cache may race on agent creation;
// that race is accepted, not guarded.
type Manager struct {
	kv  KV
	api AgentAPI
	log *slog.Logger
}

// NewManager creates a Manager.
func NewManager(kv KV, api AgentAPI, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{kv: kv, api: api, log: log}
}

// ResolveAgent returns the agent id for a scope. A cached id is validated
// with a single existence lookup; when the lookup reports the agent gone, the
// cache entry is evicted and a fresh agent is created. A site-less scope is
// only accepted for scope-optional contexts.
func (m *Manager) ResolveAgent(ctx context.Context, scope protocol.Scope) (string, error) {
	if scope.Global() && !protocol.ContextFor(scope.Context).ScopeOptional {
		return "", &protocol.ScopeRequiredError{Context: scope.Context}
	}

	key := scope.Key()
	cached, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve agent: %w", err)
	}
	if ok {
		if _, err := m.api.GetAgentDetails(ctx, cached); err == nil {
			return cached, nil
		} else if !isAgentNotFound(err) {
			return "", fmt.Errorf("validate agent %s: %w", cached, err)
		}
		m.log.Info("cached agent gone, recreating", "scope", key, "agent_id", cached)
		if err := m.kv.Delete(ctx, key); err != nil {
			return "", fmt.Errorf("evict agent cache %s: %w", key, err)
		}
	}

	agent, err := m.api.CreateAgent(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("create agent for %s: %w", key, err)
	}
	if err := m.kv.Put(ctx, key, agent.ID); err != nil {
		return "", fmt.Errorf("cache agent %s: %w", agent.ID, err)
	}
	return agent.ID, nil
}

// SwitchAgent overwrites the cache entry for a scope without validating the
// target. Validation is deferred to the next LoadHistory, which falls back to
// ResolveAgent on a not-found result.
func (m *Manager) SwitchAgent(ctx context.Context, scope protocol.Scope, agentID string) error {
	if err := m.kv.Put(ctx, scope.Key(), agentID); err != nil {
		return fmt.Errorf("switch agent: %w", err)
	}
	return nil
}

// LoadHistory fetches up to limit most recent request/response pairs for an
// agent and expands each pair into two Messages sharing the pair's
// DBMessageID. When the agent no longer exists, the scope is re-resolved and
// the new agent's (empty) history returned.
func (m *Manager) LoadHistory(ctx context.Context, scope protocol.Scope, agentID string, limit int) (string, []protocol.Message, error) {
	pairs, err := m.api.GetHistory(ctx, agentID, limit)
	if isAgentNotFound(err) {
		m.log.Info("history target gone, re-resolving", "agent_id", agentID)
		if err := m.kv.Delete(ctx, scope.Key()); err != nil {
			return "", nil, fmt.Errorf("evict agent cache: %w", err)
		}
		fresh, rerr := m.ResolveAgent(ctx, scope)
		if rerr != nil {
			return "", nil, rerr
		}
		pairs, err = m.api.GetHistory(ctx, fresh, limit)
		if err != nil {
			return "", nil, fmt.Errorf("load history for %s: %w", fresh, err)
		}
		return fresh, expandPairs(pairs), nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("load history for %s: %w", agentID, err)
	}
	return agentID, expandPairs(pairs), nil
}

// ResetHistory clears all server-side history for the agent. The local
// message list collapses to the introductory state; the agent identity is
// kept.
func (m *Manager) ResetHistory(ctx context.Context, agentID string) error {
	if err := m.api.ResetHistory(ctx, agentID); err != nil {
		return fmt.Errorf("reset history for %s: %w", agentID, err)
	}
	return nil
}

// expandPairs converts persisted pairs into display messages, oldest first.
// Each pair yields the user request then the assistant response, both linked
// to the pair's history record id.
func expandPairs(pairs []protocol.HistoryPair) []protocol.Message {
	msgs := make([]protocol.Message, 0, len(pairs)*2)
	for _, pair := range pairs {
		msgs = append(msgs,
			protocol.Message{
				ID:          uuid.New().String(),
				Sender:      protocol.SenderUser,
				Text:        pair.Request,
				DBMessageID: pair.DBMessageID,
			},
			protocol.Message{
				ID:          uuid.New().String(),
				Sender:      protocol.SenderAssistant,
				Text:        pair.Response,
				DBMessageID: pair.DBMessageID,
				EntityID:    pair.EntityID,
			})
	}
	return msgs
}

func isAgentNotFound(err error) bool {
	var nf *protocol.AgentNotFoundError
	return errors.As(err, &nf)
}
