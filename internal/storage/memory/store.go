// Package memory implements an in-memory blob store for development and
// testing.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Store holds captured images in process memory.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New constructs an empty Store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put stores a copy of data under key and returns a memory:// URL.
func (s *Store) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

// Delete removes the object at key, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

// Get returns the stored bytes for key, for test assertions.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
