package store

import (
	"context"
	"sync"

	"github.com/todobus/todobus/internal/schema"
)

// Memory keeps items in a slice guarded by a mutex.
type Memory struct {
	mu     sync.RWMutex
	items  []schema.Item
	nextID int64
	closed bool
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Add(_ context.Context, content string) (schema.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return schema.Item{}, ErrClosed
	}
	it := schema.Item{ID: m.nextID, Content: content}
	m.nextID++
	m.items = append(m.items, it)
	return it, nil
}

func (m *Memory) List(_ context.Context) ([]schema.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]schema.Item, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
