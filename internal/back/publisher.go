// Package back is the authoritative side: it stores submitted items and
// broadcasts the full list after every change.
package back

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/schema"
	"github.com/todobus/todobus/internal/store"
)

// Publisher sends the current list as one snapshot message.
type Publisher struct {
	store     store.Store
	transport bus.Transport
	queue     string

	// mu keeps list+send pairs from interleaving, so snapshots leave in the
	// order their lists were read.
	mu sync.Mutex
}

func NewPublisher(s store.Store, t bus.Transport, queue string) *Publisher {
	return &Publisher{store: s, transport: t, queue: queue}
}

// Publish reads the store and sends its full contents.
func (p *Publisher) Publish(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("publish: list: %w", err)
	}
	body, err := schema.EncodeSnapshot(items)
	if err != nil {
		return fmt.Errorf("publish: encode: %w", err)
	}
	if err := p.transport.Send(ctx, p.queue, body); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	slog.Debug("publisher: snapshot sent", "queue", p.queue, "items", len(items))
	return nil
}
