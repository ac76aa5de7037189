package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/store"
)

// broker is the part of Client a Feed drives.
type broker interface {
	PublishChange(ctx context.Context, msg *ChangeMessage) error
	Consume(ctx context.Context, handler func(*ChangeMessage) error) error
	reconnect() error
	Close() error
}

// Feed ties a Client to a store: local writes are published, remote writes
// refresh local subscriptions.
type Feed struct {
	client    broker
	refresher store.Refresher
	origin    string
	backoff   func(attempt int) time.Duration
}

var _ store.ChangePublisher = (*Feed)(nil)

func NewFeed(client *Client, refresher store.Refresher) *Feed {
	return newFeed(client, refresher)
}

func newFeed(b broker, refresher store.Refresher) *Feed {
	return &Feed{client: b, refresher: refresher, origin: uuid.NewString(), backoff: exponentialBackoff}
}

// PublishChange implements store.ChangePublisher.
func (f *Feed) PublishChange(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return f.client.PublishChange(ctx, NewChangeMessage(f.origin, paths))
}

func (f *Feed) handle(msg *ChangeMessage) error {
	if msg.Origin == f.origin {
		return nil
	}
	for _, p := range msg.Paths {
		if _, _, err := store.SplitPath(p); err != nil {
			return err
		}
	}
	f.refresher.Refresh(msg.Paths...)
	return nil
}

// Run consumes change messages until ctx is done, reconnecting with
// exponential backoff when the broker connection drops. Each reconnect
// binds a fresh queue, so everything is refreshed once it is up.
func (f *Feed) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := f.client.Consume(ctx, f.handle)
		if ctx.Err() != nil {
			return nil
		}
		if !isConnectionError(err) {
			return err
		}

		wait := f.backoff(attempt)
		slog.WarnContext(ctx, "Change feed disconnected", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		if err := f.client.reconnect(); err != nil {
			attempt++
			continue
		}
		attempt = 0
		f.refresher.RefreshAll()
		slog.InfoContext(ctx, "Change feed reconnected")
	}
}

func (f *Feed) Close() error {
	return f.client.Close()
}
