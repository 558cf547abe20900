// Package store holds the authoritative todo list.
//
// Every backend assigns identifiers 1, 2, 3, … in insertion order and
// serializes Add, so all mutations take effect in one global order.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/todobus/todobus/internal/schema"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is the two-operation contract the back process relies on.
type Store interface {
	// Add appends a new item with a freshly assigned ID.
	Add(ctx context.Context, content string) (schema.Item, error)
	// List returns all items in insertion order. Never nil.
	List(ctx context.Context) ([]schema.Item, error)
	Close() error
}

// Kind names a backend.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindPostgres Kind = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Kind Kind
	Path string // file backend: path to the JSON file
	DSN  string // postgres backend
}

// Open builds the backend named by opts.Kind.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Kind {
	case KindMemory, "":
		return NewMemory(), nil
	case KindFile:
		return OpenFile(opts.Path)
	case KindPostgres:
		return OpenPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}
