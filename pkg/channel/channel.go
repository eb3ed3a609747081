// Package channel implements the push transport that delivers task results
// out of band from the HTTP request that submitted them. The websocket
// Channel is a delivery optimization, not a correctness requirement: pending
// requests are durably recorded in the outbox, and the Poller provides the
// same handler contract over plain HTTP polling.
package channel

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"nhooyr.io/websocket"

	"atelier/pkg/protocol"
)

// Handler receives each terminal task result exactly as parsed off the wire.
// The pipeline's OnResult satisfies it.
type Handler func(ctx context.Context, result protocol.TaskResult)

// DefaultReconnectDelay is the fixed delay before redialing after an
// abnormal close.
const DefaultReconnectDelay = 2 * time.Second

// reconnectJitter is the maximum jitter added to the reconnect delay.
const reconnectJitter = 500 * time.Millisecond

// Channel is a persistent duplex connection identified by a stable client
// key. It redials after abnormal closes and stops on normal closes or
// context cancellation.
type Channel struct {
	endpoint       string
	clientKey      string
	handler        Handler
	log            *slog.Logger
	reconnectDelay time.Duration
}

// New creates a Channel that will connect to endpoint with the given client
// key. Run must be called to start it.
func New(endpoint, clientKey string, handler Handler, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		endpoint:       endpoint,
		clientKey:      clientKey,
		handler:        handler,
		log:            log,
		reconnectDelay: DefaultReconnectDelay,
	}
}

// SetReconnectDelay overrides the reconnect delay (for testing).
func (c *Channel) SetReconnectDelay(d time.Duration) {
	c.reconnectDelay = d
}

// Run connects and reads frames until the context is cancelled or the server
// closes the connection with a normal code. Abnormal closes and dial failures
// trigger a redial after the reconnect delay plus jitter.
func (c *Channel) Run(ctx context.Context) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}

	for {
		conn, _, err := websocket.Dial(ctx, target, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("channel dial failed", "error", err)
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		normal := c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
			return nil
		}
		if normal {
			return nil
		}
		c.log.Warn("channel closed abnormally, reconnecting")
		if !c.sleep(ctx) {
			return nil
		}
	}
}

// readLoop reads frames until the connection drops. It reports whether the
// close was intentional (normal or going-away code).
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) bool {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
		}

		result, err := protocol.DecodeResult(data)
		if err != nil {
			// Malformed frames never crash the channel.
			c.log.Warn("dropping malformed channel frame", "error", err)
			continue
		}
		c.handler(ctx, result)
	}
}

// dialURL appends the client key to the endpoint.
func (c *Channel) dialURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client", c.clientKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sleep waits out the reconnect delay plus jitter. It reports false when the
// context was cancelled while waiting.
func (c *Channel) sleep(ctx context.Context) bool {
	delay := c.reconnectDelay + rand.N(reconnectJitter)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
