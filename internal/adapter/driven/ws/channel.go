// Package ws implements the PushSource port over the comment service's
// websocket endpoints.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gleb165/commentsync/internal/adapter/driven/wire"
	"github.com/gleb165/commentsync/internal/domain/model"
	"github.com/gleb165/commentsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PushSource = (*Channel)(nil)

// Reconnect backoff bounds.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// eventBuffer absorbs bursts so a slow consumer does not stall the read loop.
const eventBuffer = 32

// Channel implements PushSource by dialing the server's websocket paths and
// decoding JSON envelopes into typed events. Each subscription owns its
// connection and reconnects with capped exponential backoff until its
// context is canceled, after which the event channel is closed.
type Channel struct {
	base   *url.URL
	dialer *websocket.Dialer
}

// NewChannel creates a Channel for the given websocket base URL
// (ws:// or wss://).
func NewChannel(baseURL string) (*Channel, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Channel{base: base, dialer: websocket.DefaultDialer}, nil
}

// SubscribeFeed subscribes to feed-scope events at /ws/comments/.
func (c *Channel) SubscribeFeed(ctx context.Context) (<-chan model.PushEvent, error) {
	return c.subscribe(ctx, "/ws/comments/"), nil
}

// SubscribeThread subscribes to events for one thread at /ws/comments/{id}/.
func (c *Channel) SubscribeThread(ctx context.Context, commentID string) (<-chan model.PushEvent, error) {
	return c.subscribe(ctx, "/ws/comments/"+commentID+"/"), nil
}

// subscribe starts the dial-read loop for one endpoint.
func (c *Channel) subscribe(ctx context.Context, p string) <-chan model.PushEvent {
	events := make(chan model.PushEvent, eventBuffer)
	endpoint := c.base.JoinPath(p).String()

	go func() {
		defer close(events)

		backoff := initialBackoff
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("push channel dial failed",
					"endpoint", endpoint,
					"retry_in", backoff,
					"error", err,
				)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}

			slog.Info("push channel connected", "endpoint", endpoint)
			backoff = initialBackoff

			c.readLoop(ctx, conn, events)
			conn.Close()
		}
	}()

	return events
}

// readLoop delivers decoded events until the connection breaks or the
// context is canceled. A goroutine closes the connection on cancellation to
// unblock the blocking read.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- model.PushEvent) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("push channel read failed", "error", err)
			}
			return
		}

		ev, ok := decodeEnvelope(data)
		if !ok {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// decodeEnvelope parses one frame. Malformed frames and unrecognized types
// are dropped, not fatal.
func decodeEnvelope(data []byte) (model.PushEvent, bool) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("malformed push message", "error", err)
		return model.PushEvent{}, false
	}

	var eventType model.PushEventType
	switch env.Type {
	case string(model.PushCommentCreated):
		eventType = model.PushCommentCreated
	case string(model.PushReplyCreated):
		eventType = model.PushReplyCreated
	default:
		slog.Debug("ignoring unrecognized push message type", "type", env.Type)
		return model.PushEvent{}, false
	}

	if env.Comment == nil {
		slog.Warn("push message without comment payload", "type", env.Type)
		return model.PushEvent{}, false
	}

	return model.PushEvent{Type: eventType, Comment: env.Comment.ToNode()}, true
}
