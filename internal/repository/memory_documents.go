package repository

import (
	"context"
	"sync"
)

// MemoryDocuments is an in-process backend used for dry runs and tests.
type MemoryDocuments struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string][]byte)}
}

func (m *MemoryDocuments) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryDocuments) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryDocuments) Close() error { return nil }
