// Package schema defines the payloads that travel on the todo queues.
//
// Wire format (JSON):
//
//	new-item message:  {"content":"call mom"}
//	snapshot message:  [{"id":1,"content":"buy milk"},{"id":2,"content":"call mom"}]
//
// An item whose ID is zero has not been stored yet; the ID is omitted on the wire.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload is wrapped by every decode failure.
var ErrMalformedPayload = errors.New("malformed payload")

// Item is a single todo entry. Items are never modified once stored.
type Item struct {
	ID      int64  `json:"id,omitempty"`
	Content string `json:"content"`
}

// Stored reports whether the item carries a store-assigned identifier.
func (i Item) Stored() bool { return i.ID != 0 }

// Snapshot is the full, ordered item list at the time of a publish.
type Snapshot []Item

// EncodeItem serialises a new-item message.
func EncodeItem(it Item) ([]byte, error) {
	return encode(it)
}

// DecodeItem parses a new-item message.
func DecodeItem(body []byte) (Item, error) {
	var it Item
	if err := json.Unmarshal(body, &it); err != nil {
		return Item{}, fmt.Errorf("%w: item: %v", ErrMalformedPayload, err)
	}
	return it, nil
}

// EncodeSnapshot serialises a full item list. A nil list encodes as "[]".
func EncodeSnapshot(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return encode(items)
}

// DecodeSnapshot parses a snapshot message. An empty body or JSON null
// yields an empty, non-nil snapshot.
func DecodeSnapshot(body []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Snapshot{}, nil
	}
	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrMalformedPayload, err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep "<" and "&" readable in todo text
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
