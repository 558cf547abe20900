package front

import (
	"context"
	"fmt"

	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/schema"
)

// Submitter forwards new items to the back without waiting for them to be
// stored.
type Submitter struct {
	transport bus.Transport
	queue     string
}

func NewSubmitter(t bus.Transport, queue string) *Submitter {
	return &Submitter{transport: t, queue: queue}
}

// Submit sends content as an item with no ID.
func (s *Submitter) Submit(ctx context.Context, content string) error {
	body, err := schema.EncodeItem(schema.Item{Content: content})
	if err != nil {
		return fmt.Errorf("submit: encode: %w", err)
	}
	if err := s.transport.Send(ctx, s.queue, body); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}
