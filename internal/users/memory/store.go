// Package memory provides an in-memory user store for development/testing.
package memory

import (
	"context"
	"sync"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Store holds user records in process memory.
type Store struct {
	mu    sync.RWMutex
	users map[string]screenshot.User
	byKey map[string]string
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users: make(map[string]screenshot.User),
		byKey: make(map[string]string),
	}
}

// Put inserts or replaces a user record, indexing its API key.
func (s *Store) Put(user screenshot.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[user.ID]; ok && existing.APIKey != user.APIKey {
		delete(s.byKey, existing.APIKey)
	}
	s.users[user.ID] = user
	if user.APIKey != "" {
		s.byKey[user.APIKey] = user.ID
	}
}

// GetUser fetches a user by ID.
func (s *Store) GetUser(_ context.Context, id string) (screenshot.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return screenshot.User{}, screenshot.ErrUserNotFound
	}
	return user, nil
}

// GetUserByAPIKey fetches a user by API key.
func (s *Store) GetUserByAPIKey(_ context.Context, apiKey string) (screenshot.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[apiKey]
	if !ok {
		return screenshot.User{}, screenshot.ErrUserNotFound
	}
	return s.users[id], nil
}

// SaveUser persists the mutable subscription and usage fields of an
// existing user.
func (s *Store) SaveUser(_ context.Context, user screenshot.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return screenshot.ErrUserNotFound
	}
	// Identity fields are owned by the registration flow.
	user.APIKey = existing.APIKey
	s.users[user.ID] = user
	return nil
}
