package kv

import (
	"context"
	"sync"
)

type MemorySurface struct {
	mu   sync.RWMutex
	data map[string]string
}

func init() {
	Register("memory", func(args interface{}) (Surface, error) {
		return NewMemory(), nil
	})
}

func NewMemory() *MemorySurface {
	return &MemorySurface{data: make(map[string]string)}
}

func (m *MemorySurface) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *MemorySurface) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemorySurface) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemorySurface) Close() error {
	return nil
}
