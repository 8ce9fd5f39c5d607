package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestOutboxRepository_PostgresBacklogDrains(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	created, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "ORD-1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"order_id":"ORD-1","total":"22.00"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	paid, err := repo.Enqueue(domain.OutboxMessage{
		ID:            "evt-paid-ORD-1",
		AggregateType: "order",
		AggregateID:   "ORD-1",
		EventType:     domain.EventOrderPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-paid-ORD-1", paid.ID)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.False(t, stats.OldestPendingAt.IsZero())

	pending, err := repo.PullPending(0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, created.ID, pending[0].ID)
	assert.JSONEq(t, `{"order_id":"ORD-1","total":"22.00"}`, string(pending[0].Payload))
	// пустой payload сохраняется как пустой JSON-объект
	assert.JSONEq(t, `{}`, string(pending[1].Payload))

	require.NoError(t, repo.MarkSent(created.ID))
	require.NoError(t, repo.MarkFailed(paid.ID))

	pending, err = repo.PullPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err = repo.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.IsZero())
}

func TestOutboxRepository_PostgresEnqueueSameIDTwice(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	msg := domain.OutboxMessage{ID: "evt-1", AggregateType: "order", AggregateID: "ORD-1", EventType: domain.EventOrderCreated}
	_, err := repo.Enqueue(msg)
	require.NoError(t, err)
	_, err = repo.Enqueue(msg)
	require.NoError(t, err)

	pending, err := repo.PullPending(10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestOutboxRepository_PostgresUnknownID(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	assert.ErrorIs(t, repo.MarkSent("evt-missing"), domain.ErrOutboxPublish)
	assert.ErrorIs(t, repo.MarkFailed("evt-missing"), domain.ErrOutboxPublish)
}

func TestOutboxRepository_PostgresOldestFirst(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first, err := repo.Enqueue(domain.OutboxMessage{AggregateType: "order", AggregateID: "ORD-OLD", EventType: domain.EventOrderCreated})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = repo.Enqueue(domain.OutboxMessage{AggregateType: "order", AggregateID: "ORD-NEW", EventType: domain.EventOrderCreated})
	require.NoError(t, err)

	pending, err := repo.PullPending(1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "ORD-OLD", pending[0].AggregateID)
}
