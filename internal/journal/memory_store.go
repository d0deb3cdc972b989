package journal

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu          sync.RWMutex
	attempts    map[string]*Attempt
	transitions map[string][]StateTransition
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts:    make(map[string]*Attempt),
		transitions: make(map[string][]StateTransition),
	}
}

// SaveAttempt persists a new attempt
func (s *MemoryStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attempts[a.ID]; exists {
		return errors.New("attempt already exists: " + a.ID)
	}
	s.attempts[a.ID] = a.clone()
	return nil
}

// GetAttempt retrieves an attempt by ID
func (s *MemoryStore) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.attempts[id]
	if !exists {
		return nil, ErrAttemptNotFound
	}
	return a.clone(), nil
}

// UpdateAttempt replaces an existing attempt
func (s *MemoryStore) UpdateAttempt(ctx context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attempts[a.ID]; !exists {
		return ErrAttemptNotFound
	}
	s.attempts[a.ID] = a.clone()
	return nil
}

// SaveTransition persists a state transition
func (s *MemoryStore) SaveTransition(ctx context.Context, t *StateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions[t.AttemptID] = append(s.transitions[t.AttemptID], *t)
	return nil
}

// GetTransitions retrieves all transitions for an attempt in order
func (s *MemoryStore) GetTransitions(ctx context.Context, attemptID string) ([]StateTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]StateTransition, len(s.transitions[attemptID]))
	copy(result, s.transitions[attemptID])
	return result, nil
}

// ListOrphaned returns failed attempts with uploaded media, newest first
func (s *MemoryStore) ListOrphaned(ctx context.Context, limit int) ([]*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Attempt
	for _, a := range s.attempts {
		if a.Orphaned() {
			result = append(result, a.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of stored attempts
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}
