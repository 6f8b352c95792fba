package cache

import (
	"context"
	"sync"
)

// Memory is a process-wide cache without expiry.
type Memory[V any] struct {
	entries sync.Map
}

func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		var zero V
		return zero, false, nil
	}
	return v.(V), true, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.entries.Store(key, value)
	return nil
}

func (m *Memory[V]) Add(_ context.Context, key string, value V) (bool, error) {
	_, loaded := m.entries.LoadOrStore(key, value)
	return !loaded, nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}
