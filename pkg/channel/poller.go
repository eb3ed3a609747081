package channel

import (
	"context"
	"log/slog"
	"time"

	"atelier/pkg/protocol"
)

// ResultSource fetches undelivered terminal results. *backend.Client
// satisfies it.
type ResultSource interface {
	PollResults(ctx context.Context) ([]protocol.TaskResult, error)
}

// DefaultPollInterval is how often the Poller asks the backend for results.
const DefaultPollInterval = 5 * time.Second

// Poller is the fallback transport: same Handler contract as Channel, driven
// by periodic HTTP polls instead of a socket. The pipeline cannot tell the
// two apart.
type Poller struct {
	src      ResultSource
	handler  Handler
	log      *slog.Logger
	interval time.Duration
}

// NewPoller creates a Poller.
func NewPoller(src ResultSource, handler Handler, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{src: src, handler: handler, log: log, interval: DefaultPollInterval}
}

// SetInterval overrides the poll interval (for testing).
func (p *Poller) SetInterval(d time.Duration) {
	p.interval = d
}

// Run polls until the context is cancelled. Poll failures are logged and
// retried on the next tick; duplicate deliveries are harmless because the
// pipeline's result handling is idempotent.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			results, err := p.src.PollResults(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.log.Warn("result poll failed", "error", err)
				continue
			}
			for _, r := range results {
				if err := r.Validate(); err != nil {
					p.log.Warn("dropping malformed polled result", "error", err)
					continue
				}
				p.handler(ctx, r)
			}
		}
	}
}
