package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"atelier/internal/logging"
	"atelier/pkg/backend"
	"atelier/pkg/channel"
	"atelier/pkg/config"
	"atelier/pkg/eventlog"
	"atelier/pkg/outbox"
	"atelier/pkg/pipeline"
	"atelier/pkg/protocol"
	"atelier/pkg/revert"
	"atelier/pkg/session"

	_ "modernc.org/sqlite"
)

// app bundles everything the chat model drives: the coordinator, the session
// manager, and the delivery channel feeding the results queue.
type app struct {
	home    string
	cfg     config.Config
	scope   protocol.Scope
	db      *sql.DB
	api     *backend.Client
	manager *session.Manager
	coord   *pipeline.Coordinator

	// results carries task results from the channel/poller goroutine into
	// the bubbletea event loop.
	results chan protocol.TaskResult

	// docs carries DocumentReplaced notifications from the coordinator.
	docs chan json.RawMessage

	logger logging.FileLogger
	cancel context.CancelFunc
}

// docObserver adapts the docs channel to the pipeline Observer interface.
type docObserver struct {
	docs chan json.RawMessage
}

func (o docObserver) DocumentReplaced(doc json.RawMessage) {
	select {
	case o.docs <- doc:
	default: // the UI only shows the latest; dropping is fine
	}
}

func (o docObserver) ProcessingChanged(bool) {}

// newApp wires the full coordinator stack from the state directory.
func newApp() (*app, error) {
	home, err := stateHome()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadDir(home)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewFileLogger(filepath.Join(home, protocol.LogFileName), cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	log := logger.Logger

	db, err := openStateDB(stateDBPath(home))
	if err != nil {
		logger.Close()
		return nil, err
	}

	api := backend.New(cfg.BackendURL, cfg.ClientKey)
	store := outbox.New(db)
	manager := session.NewManager(session.NewSQLiteKV(db), api, log)
	scope := cfg.Scope()

	coord := pipeline.New(pipeline.Config{
		Scope:    scope,
		PageID:   cfg.PageID,
		Store:    store,
		Backend:  api,
		Reverter: revert.NewCoordinator(api, log),
		Events:   eventlog.NewWriter(db),
		Log:      log,
	})

	a := &app{
		home:    home,
		cfg:     cfg,
		scope:   scope,
		db:      db,
		api:     api,
		manager: manager,
		coord:   coord,
		results: make(chan protocol.TaskResult, 16),
		docs:    make(chan json.RawMessage, 1),
		logger:  logger,
	}
	coord.Subscribe(docObserver{docs: a.docs})
	a.startDelivery()
	return a, nil
}

// startDelivery launches the websocket channel, or the polling fallback when
// no channel endpoint is configured.
func (a *app) startDelivery() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	handler := func(_ context.Context, res protocol.TaskResult) {
		a.results <- res
	}

	if a.cfg.ChannelURL != "" {
		ch := channel.New(a.cfg.ChannelURL, a.cfg.ClientKey, handler, a.logger.Logger)
		ch.SetReconnectDelay(a.cfg.ReconnectDelay())
		go func() { _ = ch.Run(ctx) }()
		return
	}

	poller := channel.NewPoller(a.api, handler, a.logger.Logger)
	poller.SetInterval(a.cfg.PollInterval())
	go func() { _ = poller.Run(ctx) }()
}

// Close stops the delivery goroutine and releases state resources.
func (a *app) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	a.logger.Close()
}

// stateHome returns the atelier state directory (ATELIER_HOME or ~/.atelier).
func stateHome() (string, error) {
	if v := os.Getenv("ATELIER_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.AtelierDir), nil
}

// stateDBPath returns the coordinator database path (ATELIER_DB_PATH or
// home/state.db).
func stateDBPath(home string) string {
	if v := os.Getenv("ATELIER_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join(home, protocol.StateDBName)
}

// openStateDB opens the state database with WAL and a busy timeout, and
// ensures the schema exists.
func openStateDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s on %s: %w", pragma, path, err)
		}
	}
	if _, err := db.ExecContext(ctx, protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema to %s: %w", path, err)
	}
	return db, nil
}
