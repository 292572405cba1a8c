package services

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MockObjectStore is an in-memory ObjectStore for tests
type MockObjectStore struct {
	objects map[string][]byte // map of key to content
	types   map[string]string
	mu      sync.RWMutex
}

// NewMockObjectStore creates an empty in-memory store
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Put keeps the object in memory
func (m *MockObjectStore) Put(_ context.Context, key string, body io.Reader, contentType string) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	m.mu.Lock()
	m.objects[key] = content
	m.types[key] = contentType
	m.mu.Unlock()
	return nil
}

// PresignedURL returns a fake URL for stored keys
func (m *MockObjectStore) PresignedURL(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("file not found in mock S3: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// Delete forgets the object
func (m *MockObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	delete(m.types, key)
	m.mu.Unlock()
	return nil
}

// Keys returns the stored keys (for testing assertions)
func (m *MockObjectStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// ContentType returns the type an object was stored with
func (m *MockObjectStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[key]
}

// Exists checks if a key is stored
func (m *MockObjectStore) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.objects[key]
	return exists
}
