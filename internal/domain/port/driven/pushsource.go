package driven

import (
	"context"

	"github.com/gleb165/commentsync/internal/domain/model"
)

// PushSource is the driven port for the server's push channel. Subscriptions
// deliver typed creation events until the context is canceled, after which
// the returned channel is closed. Implementations own reconnection; consumers
// only ever read events from the channel and never mutate shared state from
// within a message handler.
type PushSource interface {
	// SubscribeFeed subscribes to feed-scope events (comment_created).
	SubscribeFeed(ctx context.Context) (<-chan model.PushEvent, error)
	// SubscribeThread subscribes to events for one thread (reply_created).
	SubscribeThread(ctx context.Context, commentID string) (<-chan model.PushEvent, error)
}
