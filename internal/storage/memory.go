package storage

import (
	"context"
	"sync"
)

// MemoryImageStore keeps images in process memory for local development
type MemoryImageStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryImageStore creates an empty in-memory image store
func NewMemoryImageStore(baseURL string) *MemoryImageStore {
	if baseURL == "" {
		baseURL = "memory://images"
	}
	return &MemoryImageStore{baseURL: baseURL, objects: map[string][]byte{}}
}

// Upload stores data under key
func (m *MemoryImageStore) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return m.baseURL + "/" + key, nil
}

// Delete removes key
func (m *MemoryImageStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored objects
func (m *MemoryImageStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
