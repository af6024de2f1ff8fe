package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable key-value store holding opaque records for manual follow-up.
// Metadata is a small set of string attributes stored next to the value.
type Store interface {
	Put(ctx context.Context, key string, value []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any, metadata map[string]string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Put(ctx, key, data, metadata)
}

// Entry is a stored value with its metadata.
type Entry struct {
	Value    []byte
	Metadata map[string]string
}

// MemoryStore keeps entries in process memory. It backs tests and local runs
// without redis or object storage.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	// Err, when set, is returned by every Put.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	m.entries[key] = Entry{Value: append([]byte(nil), value...), Metadata: meta}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.Value...), nil
}

// Entry returns the stored entry including metadata.
func (m *MemoryStore) Entry(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

// Keys returns all keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
