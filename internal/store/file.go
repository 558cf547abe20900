package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/todobus/todobus/internal/schema"
)

// fileState is the on-disk layout.
type fileState struct {
	NextID int64         `json:"nextId"`
	Items  []schema.Item `json:"items"`
}

// File keeps the list in memory and rewrites a JSON file on every Add.
// Writes go through a temp file and a rename so a crash never leaves a
// half-written list behind.
type File struct {
	path string

	mu     sync.Mutex
	state  fileState
	closed bool
}

var _ Store = (*File)(nil)

// OpenFile loads path, creating its directory when needed. A missing file
// starts an empty list.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file store: create dir: %w", err)
	}
	f := &File{path: path, state: fileState{NextID: 1}}
	if err := readJSON(path, &f.state); err != nil {
		return nil, fmt.Errorf("file store: read %s: %w", path, err)
	}
	if f.state.NextID < 1 {
		f.state.NextID = 1
	}
	// Guard against a hand-edited file whose counter lags behind its items.
	for _, it := range f.state.Items {
		if it.ID >= f.state.NextID {
			f.state.NextID = it.ID + 1
		}
	}
	return f, nil
}

func (f *File) Add(_ context.Context, content string) (schema.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return schema.Item{}, ErrClosed
	}

	it := schema.Item{ID: f.state.NextID, Content: content}
	next := fileState{
		NextID: f.state.NextID + 1,
		Items:  append(append([]schema.Item(nil), f.state.Items...), it),
	}
	if err := writeJSON(f.path, next, 0o600); err != nil {
		return schema.Item{}, fmt.Errorf("file store: write %s: %w", f.path, err)
	}
	f.state = next
	return it, nil
}

func (f *File) List(_ context.Context) ([]schema.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	out := make([]schema.Item, len(f.state.Items))
	copy(out, f.state.Items)
	return out, nil
}

func (f *File) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// readJSON reads path into out; a missing file is not an error.
func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// writeJSON writes v via a temp file then rename.
func writeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
