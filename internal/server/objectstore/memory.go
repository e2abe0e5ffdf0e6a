package objectstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps objects in process memory. It backs local runs and
// tests.
type MemoryBackend struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryBackend(baseURL string) *MemoryBackend {
	return &MemoryBackend{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (m *MemoryBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = cp
	return nil
}

func (m *MemoryBackend) Remove(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return false, nil
	}
	delete(m.objects, key)
	return true, nil
}

func (m *MemoryBackend) URL(key string) string {
	return joinURL(m.baseURL, key)
}

// Get returns a stored object.
func (m *MemoryBackend) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// Keys lists stored keys in sorted order.
func (m *MemoryBackend) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Backend = (*MemoryBackend)(nil)
