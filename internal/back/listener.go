package back

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/notify"
	"github.com/todobus/todobus/internal/schema"
	"github.com/todobus/todobus/internal/store"
)

// notifyTimeout bounds one round of notifications for a stored item.
const notifyTimeout = 10 * time.Second

// ListenerOptions configures a Listener.
type ListenerOptions struct {
	Queue        string
	PollInterval time.Duration
	// Notifier is told about every stored item. Optional.
	Notifier notify.Notifier
}

// Listener consumes submitted items, stores them and republishes the list.
type Listener struct {
	transport bus.Transport
	store     store.Store
	publisher *Publisher
	opts      ListenerOptions

	wg sync.WaitGroup
}

func NewListener(t bus.Transport, s store.Store, p *Publisher, opts ListenerOptions) *Listener {
	return &Listener{transport: t, store: s, publisher: p, opts: opts}
}

// Run subscribes to the new-item queue and blocks until ctx is cancelled.
// In-flight notifications are waited for before it returns.
func (l *Listener) Run(ctx context.Context) error {
	slog.Info("listener: started", "queue", l.opts.Queue)
	err := bus.Subscribe(ctx, l.transport, l.opts.Queue, l.Handle, bus.SubscribeOptions{
		PollInterval: l.opts.PollInterval,
	})
	l.wg.Wait()
	slog.Info("listener: stopped")
	return err
}

// Handle processes one new-item message. A returned error releases the
// message for redelivery.
func (l *Listener) Handle(ctx context.Context, msg bus.Message) error {
	in, err := schema.DecodeItem(msg.Body)
	if err != nil {
		return err
	}
	if in.Stored() {
		slog.Debug("listener: ignoring submitted id", "id", in.ID)
	}

	item, err := l.store.Add(ctx, in.Content)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	slog.Info("listener: item added", "id", item.ID, "attempts", msg.Attempts)

	// The item is stored; redelivering would add it twice. The next publish
	// carries the full list, so a failure here is only logged.
	if err := l.publisher.Publish(ctx); err != nil {
		slog.Error("listener: publish failed", "id", item.ID, "err", err)
	}

	if l.opts.Notifier != nil {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
			defer cancel()
			_ = l.opts.Notifier.Notify(nctx, item)
		}()
	}
	return nil
}
