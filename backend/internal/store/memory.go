package store

import (
	"context"
	"sync"

	"autoformat-service/backend/internal/persist"
)

// MemoryStore 进程内 slot，测试和 editorctl 用
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (m *MemoryStore) Save(ctx context.Context, slot string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, slot string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.slots[slot]
	if !ok {
		return nil, persist.ErrSlotEmpty
	}
	return append([]byte(nil), data...), nil
}

var _ persist.Store = (*MemoryStore)(nil)
