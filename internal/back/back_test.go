package back

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/schema"
	"github.com/todobus/todobus/internal/store"
)

const (
	newItemQueue  = "new-todo"
	snapshotQueue = "get-todos"
)

// sendFailer rejects every Send to one queue.
type sendFailer struct {
	bus.Transport
	queue string
}

func (f sendFailer) Send(ctx context.Context, queue string, body []byte) error {
	if queue == f.queue {
		return &bus.TransportError{Op: "send", Queue: queue, Err: errors.New("broker down")}
	}
	return f.Transport.Send(ctx, queue, body)
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []schema.Item
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, item schema.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

func (r *recordingNotifier) snapshot() []schema.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.Item(nil), r.items...)
}

func drainBodies(t *testing.T, tr bus.Transport, queue string) []string {
	t.Helper()
	msgs, err := tr.Receive(context.Background(), queue, 0)
	require.NoError(t, err)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Body))
	}
	return out
}

func send(t *testing.T, tr bus.Transport, content string) {
	t.Helper()
	body, err := schema.EncodeItem(schema.Item{Content: content})
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), newItemQueue, body))
}

func TestPublisher_EmptyStorePublishesEmptyList(t *testing.T) {
	tr := bus.NewMemory(bus.MemoryOptions{})
	p := NewPublisher(store.NewMemory(), tr, snapshotQueue)

	require.NoError(t, p.Publish(context.Background()))
	assert.Equal(t, []string{"[]"}, drainBodies(t, tr, snapshotQueue))
}

func TestPublisher_RepeatedPublishIsIdentical(t *testing.T) {
	ctx := context.Background()
	tr := bus.NewMemory(bus.MemoryOptions{})
	s := store.NewMemory()
	_, err := s.Add(ctx, "buy milk")
	require.NoError(t, err)

	p := NewPublisher(s, tr, snapshotQueue)
	require.NoError(t, p.Publish(ctx))
	require.NoError(t, p.Publish(ctx))

	bodies := drainBodies(t, tr, snapshotQueue)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `[{"id":1,"content":"buy milk"}]`, bodies[0])
}

func TestPublisher_ReturnsSendFailure(t *testing.T) {
	tr := sendFailer{Transport: bus.NewMemory(bus.MemoryOptions{}), queue: snapshotQueue}
	p := NewPublisher(store.NewMemory(), tr, snapshotQueue)

	err := p.Publish(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, bus.ErrTransport)
}

func TestPublisher_ReturnsStoreFailure(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Close())
	p := NewPublisher(s, bus.NewMemory(bus.MemoryOptions{}), snapshotQueue)

	assert.ErrorIs(t, p.Publish(context.Background()), store.ErrClosed)
}

func TestListener_StoresAndPublishesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := bus.NewMemory(bus.MemoryOptions{})
	s := store.NewMemory()
	notifier := &recordingNotifier{}
	l := NewListener(tr, s, NewPublisher(s, tr, snapshotQueue), ListenerOptions{
		Queue:        newItemQueue,
		PollInterval: 10 * time.Millisecond,
		Notifier:     notifier,
	})

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	send(t, tr, "buy milk")
	send(t, tr, "call mom")

	var bodies []string
	require.Eventually(t, func() bool {
		bodies = append(bodies, drainBodies(t, tr, snapshotQueue)...)
		return len(bodies) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.JSONEq(t, `[{"id":1,"content":"buy milk"}]`, bodies[0])
	assert.JSONEq(t, `[{"id":1,"content":"buy milk"},{"id":2,"content":"call mom"}]`, bodies[1])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.ElementsMatch(t, []schema.Item{{ID: 1, Content: "buy milk"}, {ID: 2, Content: "call mom"}}, notifier.snapshot())
}

func TestListener_MalformedPayloadIsReleased(t *testing.T) {
	tr := bus.NewMemory(bus.MemoryOptions{})
	s := store.NewMemory()
	l := NewListener(tr, s, NewPublisher(s, tr, snapshotQueue), ListenerOptions{Queue: newItemQueue})

	err := l.Handle(context.Background(), bus.Message{Queue: newItemQueue, Body: []byte("not json")})
	assert.ErrorIs(t, err, schema.ErrMalformedPayload)

	items, _ := s.List(context.Background())
	assert.Empty(t, items)
	assert.Empty(t, drainBodies(t, tr, snapshotQueue))
}

func TestListener_StoreFailureIsReleased(t *testing.T) {
	tr := bus.NewMemory(bus.MemoryOptions{})
	s := store.NewMemory()
	require.NoError(t, s.Close())
	l := NewListener(tr, s, NewPublisher(s, tr, snapshotQueue), ListenerOptions{Queue: newItemQueue})

	err := l.Handle(context.Background(), bus.Message{Body: []byte(`{"content":"x"}`)})
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestListener_PublishFailureStillAcks(t *testing.T) {
	ctx := context.Background()
	tr := sendFailer{Transport: bus.NewMemory(bus.MemoryOptions{}), queue: snapshotQueue}
	s := store.NewMemory()
	l := NewListener(tr, s, NewPublisher(s, tr, snapshotQueue), ListenerOptions{Queue: newItemQueue})

	require.NoError(t, l.Handle(ctx, bus.Message{Body: []byte(`{"content":"buy milk"}`)}))

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []schema.Item{{ID: 1, Content: "buy milk"}}, items)
}

func TestListener_IgnoresClientSuppliedID(t *testing.T) {
	ctx := context.Background()
	tr := bus.NewMemory(bus.MemoryOptions{})
	s := store.NewMemory()
	l := NewListener(tr, s, NewPublisher(s, tr, snapshotQueue), ListenerOptions{Queue: newItemQueue})

	require.NoError(t, l.Handle(ctx, bus.Message{Body: []byte(`{"id":99,"content":"x"}`)}))
	items, _ := s.List(ctx)
	assert.Equal(t, int64(1), items[0].ID)
}

func TestResync_Disabled(t *testing.T) {
	r, err := NewResync("", nil)
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Start(ctx), context.Canceled)
}

func TestResync_InvalidSchedule(t *testing.T) {
	_, err := NewResync("every now and then", nil)
	assert.Error(t, err)
}

func TestResync_RepublishesOnSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := bus.NewMemory(bus.MemoryOptions{})
	s := store.NewMemory()
	_, err := s.Add(ctx, "buy milk")
	require.NoError(t, err)

	r, err := NewResync("@every 1s", NewPublisher(s, tr, snapshotQueue))
	require.NoError(t, err)
	require.True(t, r.Enabled())

	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	var bodies []string
	require.Eventually(t, func() bool {
		bodies = append(bodies, drainBodies(t, tr, snapshotQueue)...)
		return len(bodies) > 0
	}, 3*time.Second, 50*time.Millisecond)
	assert.JSONEq(t, `[{"id":1,"content":"buy milk"}]`, bodies[0])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
