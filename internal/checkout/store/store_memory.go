// Package store holds checkout orders.
package store

import (
	"context"
	"sync"

	"tradegate/internal/checkout"
	id "tradegate/pkg/domain"
	"tradegate/pkg/platform/sentinel"
)

// InMemoryStore keeps orders in a map. Callers always receive copies, and
// Update swaps in the edited copy only when fn succeeds.
type InMemoryStore struct {
	mu     sync.Mutex
	orders map[id.OrderID]*checkout.Order
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orders: make(map[id.OrderID]*checkout.Order)}
}

func (s *InMemoryStore) Create(_ context.Context, order *checkout.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return sentinel.ErrConflict
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, orderID id.OrderID) (*checkout.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return order.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, orderID id.OrderID, fn func(*checkout.Order) error) (*checkout.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.orders[orderID] = working
	return working.Clone(), nil
}
