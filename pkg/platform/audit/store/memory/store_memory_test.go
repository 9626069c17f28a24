package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tradegate/pkg/domain"
	audit "tradegate/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	require.NoError(t, store.Append(ctx, audit.Event{UserID: alice, Action: string(audit.EventOrderCreated)}))
	require.NoError(t, store.Append(ctx, audit.Event{UserID: alice, Action: string(audit.EventOrderAuthorized)}))
	require.NoError(t, store.Append(ctx, audit.Event{UserID: bob, Action: string(audit.EventOrderCreated)}))

	events, err := store.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Len(t, store.ListByAction(ctx, audit.EventOrderCreated), 2)

	events[0].Action = "mutated"
	again, _ := store.ListByUser(ctx, alice)
	assert.Equal(t, string(audit.EventOrderCreated), again[0].Action)
}
