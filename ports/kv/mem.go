package kv

import (
	"bytes"
	"context"
	"sync"
)

type MemStore struct {
	mu   sync.RWMutex
	rev  uint64
	data map[string]Entry
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string]Entry{}}
}

func (m *MemStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(key, data)
	return nil
}

func (m *MemStore) putLocked(key string, data []byte) {
	m.rev++
	m.data[key] = Entry{Data: bytes.Clone(data), Revision: m.rev}
}

func (m *MemStore) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	entry.Data = bytes.Clone(entry.Data)
	return entry, nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemStore) Batch(_ context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			delete(m.data, op.Key)
			continue
		}
		m.putLocked(op.Key, op.Data)
	}
	return nil
}

// Snapshot returns a copy of all stored values.
func (m *MemStore) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.data))
	for k, e := range m.data {
		out[k] = bytes.Clone(e.Data)
	}
	return out
}

var (
	_ Store   = (*MemStore)(nil)
	_ Batcher = (*MemStore)(nil)
)
