// Package credstore provides CredentialStore backends: an in-memory store
// for tests and single-process use, and an encrypted-at-rest file store.
// The Postgres-backed store lives in internal/db/postgres with the other
// repositories.
package credstore

import (
	"context"
	"sync"

	"Anchor/internal/core/auth"
)

// MemoryStore keeps credentials in process memory. Used for test isolation
// and for deployments that accept logging in again after a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *auth.Credentials
}

var _ auth.CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored credentials, or (nil, nil) when empty.
func (s *MemoryStore) Load(ctx context.Context) (*auth.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Clone(), nil
}

// Save replaces the stored credentials. Last write wins.
func (s *MemoryStore) Save(ctx context.Context, creds *auth.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds.Clone()
	return nil
}

// Clear removes the stored credentials. Idempotent.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}
