package archive

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory keeps records in process memory.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = slices.Clone(doc)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(doc), nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.docs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *Memory) Close() error { return nil }
