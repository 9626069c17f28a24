package memory

import (
	"context"
	"sync"

	id "tradegate/pkg/domain"
	audit "tradegate/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.UserID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.UserID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], event)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[userID]...), nil
}

// ListByAction returns every event with the given action, across users.
func (s *InMemoryStore) ListByAction(_ context.Context, action audit.AuditEvent) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, userEvents := range s.events {
		for _, e := range userEvents {
			if e.Action == string(action) {
				out = append(out, e)
			}
		}
	}
	return out
}
