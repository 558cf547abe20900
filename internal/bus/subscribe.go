package bus

import (
	"context"
	"log/slog"
	"time"
)

// Handler processes one message. A nil return acks the message; an error
// nacks it so the transport can redeliver or dead-letter it.
type Handler func(ctx context.Context, msg Message) error

// SubscribeOptions tunes the subscription loop.
type SubscribeOptions struct {
	// PollInterval is the fallback wait between empty receives. Transports
	// that implement Notifier wake the loop earlier. Default 1s.
	PollInterval time.Duration
}

// Subscribe registers h on queue and processes messages one at a time until
// ctx is cancelled. It always returns a non-nil error (ctx.Err() on shutdown).
func Subscribe(ctx context.Context, t Transport, queue string, h Handler, opts SubscribeOptions) error {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	var wake <-chan struct{}
	if n, ok := t.(Notifier); ok {
		ch, err := n.Notify(ctx, queue)
		if err != nil {
			slog.Warn("subscribe: notifications unavailable, polling", "queue", queue, "err", err)
		} else {
			wake = ch
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("subscribe: listening", "queue", queue, "poll", interval, "push", wake != nil)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := t.Receive(ctx, queue, 1)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("subscribe: receive failed", "queue", queue, "err", err)
		case len(msgs) > 0:
			for _, msg := range msgs {
				dispatch(ctx, t, queue, h, msg)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				slog.Debug("subscribe: notifications closed, polling", "queue", queue)
				wake = nil
			}
		}
	}
}

func dispatch(ctx context.Context, t Transport, queue string, h Handler, msg Message) {
	if err := h(ctx, msg); err != nil {
		slog.Warn("subscribe: handler failed, releasing message",
			"queue", queue, "id", msg.ID, "attempts", msg.Attempts, "err", err)
		if nerr := t.Nack(ctx, queue, msg.ID); nerr != nil {
			slog.Error("subscribe: nack failed", "queue", queue, "id", msg.ID, "err", nerr)
		}
		return
	}
	if err := t.Ack(ctx, queue, msg.ID); err != nil {
		slog.Error("subscribe: ack failed", "queue", queue, "id", msg.ID, "err", err)
	}
}
