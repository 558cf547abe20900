// Package front is the presentation side: it shows the latest snapshot the
// back published and forwards new submissions.
package front

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/schema"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Queue      string
	BatchSize  int // messages per Receive; default 10
	MaxBatches int // upper bound on receives per Refresh; default 100
}

// Reader drains the snapshot queue and keeps only the newest list.
// It holds no state between calls: when nothing is pending the list is empty.
type Reader struct {
	transport bus.Transport
	opts      ReaderOptions

	mu sync.Mutex
}

func NewReader(t bus.Transport, opts ReaderOptions) *Reader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = 100
	}
	return &Reader{transport: t, opts: opts}
}

// Refresh returns the items of the last well-formed snapshot currently on
// the queue, or an empty list if there is none. Decoded snapshots are acked;
// malformed ones are left to expire and be redelivered or dead-lettered.
func (r *Reader) Refresh(ctx context.Context) ([]schema.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		latest    schema.Snapshot
		found     bool
		acks      []string
		malformed int
	)
	for batch := 0; batch < r.opts.MaxBatches; batch++ {
		msgs, err := r.transport.Receive(ctx, r.opts.Queue, r.opts.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		for _, msg := range msgs {
			snap, err := schema.DecodeSnapshot(msg.Body)
			if err != nil {
				malformed++
				slog.Warn("reader: skipping malformed snapshot", "id", msg.ID, "attempts", msg.Attempts, "err", err)
				continue
			}
			latest, found = snap, true
			acks = append(acks, msg.ID)
		}
		if len(msgs) < r.opts.BatchSize {
			break
		}
	}

	if len(acks) > 0 {
		if err := r.transport.Ack(ctx, r.opts.Queue, acks...); err != nil {
			// Unacked snapshots come back later; the list we hold is still the newest.
			slog.Warn("reader: ack failed", "count", len(acks), "err", err)
		}
	}
	slog.Debug("reader: refreshed", "drained", len(acks), "malformed", malformed)

	if !found {
		return []schema.Item{}, nil
	}
	return latest, nil
}
