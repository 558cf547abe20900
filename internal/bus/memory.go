package bus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryOptions tunes the in-process broker.
type MemoryOptions struct {
	LeaseTimeout time.Duration // how long a received message stays invisible; default 30s
	MaxAttempts  int           // deliveries before dead-lettering; default 5
}

func (o MemoryOptions) withDefaults() MemoryOptions {
	if o.LeaseTimeout <= 0 {
		o.LeaseTimeout = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	return o
}

// QueueStats is a point-in-time view of one queue.
type QueueStats struct {
	Queue    string `json:"queue"`
	Ready    int    `json:"ready"`
	InFlight int    `json:"inflight"`
}

// Memory is the default in-process Transport.
//
// Every queue keeps a ready list and a set of leased messages. Leases that
// outlive LeaseTimeout are reclaimed lazily on the next Receive or Stats call.
type Memory struct {
	opts MemoryOptions
	now  func() time.Time

	mu     sync.Mutex
	queues map[string]*memQueue
	closed bool
}

type memQueue struct {
	ready    []*memEntry
	inflight map[string]*memEntry
	watchers map[chan struct{}]struct{}
}

type memEntry struct {
	msg        Message
	leaseUntil time.Time
}

// NewMemory creates an empty in-process broker.
func NewMemory(opts MemoryOptions) *Memory {
	return &Memory{
		opts:   opts.withDefaults(),
		now:    time.Now,
		queues: make(map[string]*memQueue),
	}
}

var (
	_ Transport = (*Memory)(nil)
	_ Notifier  = (*Memory)(nil)
)

func (m *Memory) queueLocked(name string) *memQueue {
	q, ok := m.queues[name]
	if !ok {
		q = &memQueue{
			inflight: make(map[string]*memEntry),
			watchers: make(map[chan struct{}]struct{}),
		}
		m.queues[name] = q
	}
	return q
}

// Send enqueues a copy of body.
func (m *Memory) Send(ctx context.Context, queue string, body []byte) error {
	_, err := m.Enqueue(ctx, queue, body)
	return err
}

// Enqueue is Send that also returns the stored message.
func (m *Memory) Enqueue(_ context.Context, queue string, body []byte) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Message{}, &TransportError{Op: "send", Queue: queue, Err: ErrClosed}
	}
	msg := Message{
		ID:     uuid.NewString(),
		Queue:  queue,
		Body:   append([]byte(nil), body...),
		SentAt: m.now(),
	}
	m.pushLocked(queue, msg)
	return copyMessage(msg), nil
}

// Receive leases up to max ready messages in arrival order.
func (m *Memory) Receive(_ context.Context, queue string, max int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, &TransportError{Op: "receive", Queue: queue, Err: ErrClosed}
	}

	q := m.queueLocked(queue)
	m.reclaimLocked(queue, q)

	n := len(q.ready)
	if max > 0 && max < n {
		n = max
	}
	out := make([]Message, 0, n)
	leaseUntil := m.now().Add(m.opts.LeaseTimeout)
	for _, e := range q.ready[:n] {
		e.msg.Attempts++
		e.leaseUntil = leaseUntil
		q.inflight[e.msg.ID] = e
		out = append(out, copyMessage(e.msg))
	}
	q.ready = q.ready[n:]
	return out, nil
}

// Ack drops leased messages.
func (m *Memory) Ack(_ context.Context, queue string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &TransportError{Op: "ack", Queue: queue, Err: ErrClosed}
	}
	q := m.queueLocked(queue)
	for _, id := range ids {
		delete(q.inflight, id)
	}
	return nil
}

// Nack releases a leased message for redelivery.
func (m *Memory) Nack(_ context.Context, queue string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &TransportError{Op: "nack", Queue: queue, Err: ErrClosed}
	}
	q := m.queueLocked(queue)
	e, ok := q.inflight[id]
	if !ok {
		return nil
	}
	delete(q.inflight, id)
	m.releaseLocked(queue, q, e)
	return nil
}

// Notify registers a wake-up channel for queue.
func (m *Memory) Notify(ctx context.Context, queue string) (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, &TransportError{Op: "notify", Queue: queue, Err: ErrClosed}
	}
	ch := make(chan struct{}, 1)
	q := m.queueLocked(queue)
	q.watchers[ch] = struct{}{}
	if len(q.ready) > 0 {
		ch <- struct{}{}
	}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := q.watchers[ch]; ok {
			delete(q.watchers, ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Stats returns per-queue counters sorted by queue name.
func (m *Memory) Stats() []QueueStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Reclaiming may dead-letter into queues that do not exist yet, so
	// iterate over a copy.
	queues := make(map[string]*memQueue, len(m.queues))
	for name, q := range m.queues {
		queues[name] = q
	}
	for name, q := range queues {
		m.reclaimLocked(name, q)
	}

	out := make([]QueueStats, 0, len(m.queues))
	for name, q := range m.queues {
		out = append(out, QueueStats{Queue: name, Ready: len(q.ready), InFlight: len(q.inflight)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue < out[j].Queue })
	return out
}

// Close stops the broker and closes all notification channels.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, q := range m.queues {
		for ch := range q.watchers {
			delete(q.watchers, ch)
			close(ch)
		}
	}
	return nil
}

func (m *Memory) pushLocked(queue string, msg Message) {
	q := m.queueLocked(queue)
	q.ready = append(q.ready, &memEntry{msg: msg})
	signalLocked(q)
}

// reclaimLocked returns expired leases to the ready list.
func (m *Memory) reclaimLocked(queue string, q *memQueue) {
	now := m.now()
	var expired []*memEntry
	for id, e := range q.inflight {
		if now.After(e.leaseUntil) {
			delete(q.inflight, id)
			expired = append(expired, e)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].msg.SentAt.Before(expired[j].msg.SentAt)
	})
	for _, e := range expired {
		m.releaseLocked(queue, q, e)
	}
}

func (m *Memory) releaseLocked(queue string, q *memQueue, e *memEntry) {
	if e.msg.Attempts >= m.opts.MaxAttempts {
		dead := e.msg
		dead.Queue = DeadLetterQueue(queue)
		dead.Attempts = 0
		m.pushLocked(dead.Queue, dead)
		return
	}
	e.leaseUntil = time.Time{}
	q.ready = append(q.ready, e)
	signalLocked(q)
}

func signalLocked(q *memQueue) {
	for ch := range q.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func copyMessage(msg Message) Message {
	msg.Body = append([]byte(nil), msg.Body...)
	return msg
}
