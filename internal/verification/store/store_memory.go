// Package store persists verification sessions.
package store

import (
	"context"
	"sync"

	"tradegate/internal/verification"
	id "tradegate/pkg/domain"
	"tradegate/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map. Update holds the store lock while fn
// runs, so writers for the same user are fully serialized.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[id.UserID]*verification.Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.UserID]*verification.Session)}
}

func (s *InMemoryStore) Create(_ context.Context, session *verification.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.UserID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.UserID] = session
	return nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*verification.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return session, nil
}

func (s *InMemoryStore) Update(_ context.Context, userID id.UserID, fn func(*verification.Session) error) (*verification.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	return session, nil
}
