package state

import (
	"encoding/json"
	"fmt"
)

// TypedStore stores documents of one kind as JSON-encoded T.
type TypedStore[T any] struct {
	store *Store
	kind  string
}

// NewTypedStore binds a store to one document kind.
func NewTypedStore[T any](store *Store, kind string) *TypedStore[T] {
	return &TypedStore[T]{store: store, kind: kind}
}

// Kind returns the document kind.
func (s *TypedStore[T]) Kind() string {
	return s.kind
}

// Get decodes the document for id. A missing document yields the zero value
// and version 0.
func (s *TypedStore[T]) Get(id string) (value T, version int64, err error) {
	payload, version, err := s.store.Get(s.kind, id)
	if err != nil || payload == nil {
		return value, 0, err
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, 0, fmt.Errorf("decode %s/%s: %w", s.kind, id, err)
	}
	return value, version, nil
}

// Set encodes and stores value under id.
func (s *TypedStore[T]) Set(id string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.kind, id, err)
	}
	_, err = s.store.Put(s.kind, id, payload)
	return err
}

// Delete removes the document for id.
func (s *TypedStore[T]) Delete(id string) error {
	return s.store.Delete(s.kind, id)
}

// Clear removes every document of this kind.
func (s *TypedStore[T]) Clear() error {
	return s.store.Clear(s.kind)
}

// All decodes every document of this kind.
func (s *TypedStore[T]) All() (map[string]T, error) {
	payloads, err := s.store.List(s.kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(payloads))
	for id, payload := range payloads {
		var value T
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", s.kind, id, err)
		}
		out[id] = value
	}
	return out, nil
}
