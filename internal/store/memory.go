package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map.
// Used in tests and when persistence is disabled.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[Slot][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[Slot][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, slot Slot) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.slots[slot]
	if !ok {
		return nil, &ErrNotFound{Entity: "slot", Key: string(slot)}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, slot Slot, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.slots[slot] = buf
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
