// Package bus defines the queue transport that connects the back and front
// processes.
//
// Producers call Send; consumers either drain a queue with Receive or register
// a handler with Subscribe. Delivery is at-least-once: a received message is
// leased until it is acked, and a nack or an expired lease puts it back on the
// queue. Implementations may be in-process (Memory), remote (broker.Client), or
// any other store-and-forward system.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransport is matched by every *TransportError.
var ErrTransport = errors.New("transport failure")

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// Message is one delivery from a queue.
type Message struct {
	ID       string    `json:"id"`
	Queue    string    `json:"queue"`
	Body     []byte    `json:"body"`
	Attempts int       `json:"attempts"` // deliveries so far, including this one
	SentAt   time.Time `json:"sentAt"`
}

// Transport is the contract between producers/consumers and the broker.
type Transport interface {
	// Send enqueues body on queue.
	Send(ctx context.Context, queue string, body []byte) error
	// Receive leases up to max currently available messages without waiting.
	// max <= 0 means no limit. An empty result is not an error.
	Receive(ctx context.Context, queue string, max int) ([]Message, error)
	// Ack removes leased messages for good. Unknown IDs are ignored.
	Ack(ctx context.Context, queue string, ids ...string) error
	// Nack returns a leased message to the queue (or to the dead-letter queue
	// once it has used up its attempts).
	Nack(ctx context.Context, queue string, id string) error
	Close() error
}

// Notifier is implemented by transports that can signal new messages.
// The returned channel receives a value whenever the queue may have become
// non-empty and is closed when ctx ends or the transport stops notifying.
type Notifier interface {
	Notify(ctx context.Context, queue string) (<-chan struct{}, error)
}

// DeadLetterQueue returns the name of the dead-letter queue for queue.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// TransportError describes a failed send/receive against the broker.
type TransportError struct {
	Op    string // "send", "receive", "ack", "nack", "notify"
	Queue string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Queue, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) hold for every TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
