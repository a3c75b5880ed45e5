package storage

import (
	"context"
	"sync"
)

type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]map[string]string)}
}

func (m *MemoryBackend) Get(_ context.Context, sid, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[sid][key]
	return value, ok, nil
}

func (m *MemoryBackend) SetMany(_ context.Context, sid string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.values[sid]
	if !ok {
		bucket = make(map[string]string, len(values))
		m.values[sid] = bucket
	}
	for key, value := range values {
		bucket[key] = value
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, sid string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.values[sid]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(bucket, key)
	}
	if len(bucket) == 0 {
		delete(m.values, sid)
	}
	return nil
}

// Len reports how many session ids currently hold values.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
