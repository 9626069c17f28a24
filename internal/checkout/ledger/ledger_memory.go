// Package ledger records authorized (order, token) pairs so a payment is
// authorized at most once per set of inputs.
package ledger

import (
	"context"
	"sync"

	"tradegate/internal/checkout"
)

type InMemoryLedger struct {
	mu      sync.Mutex
	entries map[string]*checkout.Authorization
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{entries: make(map[string]*checkout.Authorization)}
}

func (l *InMemoryLedger) Reserve(_ context.Context, auth *checkout.Authorization) (*checkout.Authorization, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(auth)
	if existing, ok := l.entries[k]; ok {
		return existing, true, nil
	}
	l.entries[k] = auth
	return auth, false, nil
}

func key(auth *checkout.Authorization) string {
	return "checkout:authorization:" + auth.OrderID.String() + ":" + auth.Token
}
