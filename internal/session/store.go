package session

import (
	"context"
	"sync"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

// CredentialStore persists the single process-wide credential.
// Load returns an empty credential and no error when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (domain.Credential, error)
	Save(ctx context.Context, cred domain.Credential) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the credential in memory only
type MemoryStore struct {
	mu   sync.RWMutex
	cred domain.Credential
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored credential
func (s *MemoryStore) Load(ctx context.Context) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, nil
}

// Save replaces the stored credential
func (s *MemoryStore) Save(ctx context.Context, cred domain.Credential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return nil
}

// Clear removes the stored credential
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cred = ""
	s.mu.Unlock()
	return nil
}
