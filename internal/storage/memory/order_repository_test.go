package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

func newOrder(id string, createdAt time.Time) domain.Order {
	return domain.NewOrder(id, []domain.OrderItem{
		{SKU: "A100", Qty: 2, Price: decimal.RequireFromString("3.5")},
		{SKU: "B200", Qty: 1, Price: decimal.RequireFromString("9.9")},
	}, createdAt)
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("ORD-1", time.Now().UTC())

	require.NoError(t, repo.Create(ctx, order))

	stored, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, domain.OrderStatusCreated, stored.Status)
}

func TestOrderRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("ORD-1", time.Now().UTC())

	require.NoError(t, repo.Create(ctx, order))
	assert.ErrorIs(t, repo.Create(ctx, order), domain.ErrOrderExists)
}

func TestOrderRepository_GetMissing(t *testing.T) {
	_, err := memory.NewOrderRepository().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Create(ctx, newOrder("ORD-1", time.Now())))

	stored, err := repo.Get(ctx, "ORD-1")
	require.NoError(t, err)
	stored.Items[0].SKU = "mutated"
	stored.AddNote("mutated")

	again, err := repo.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "A100", again.Items[0].SKU)
	assert.Empty(t, again.Notes)
}

func TestOrderRepository_ListOrdered(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newOrder("ORD-2", base.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, newOrder("ORD-1", base)))
	require.NoError(t, repo.Create(ctx, newOrder("ORD-3", base.Add(time.Second))))

	orders, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"ORD-1", "ORD-2", "ORD-3"}, []string{orders[0].ID, orders[1].ID, orders[2].ID})
}

func TestOrderRepository_Save(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Create(ctx, newOrder("ORD-1", time.Now())))

	stored, err := repo.Get(ctx, "ORD-1")
	require.NoError(t, err)

	stored.Status = domain.OrderStatusPaid
	require.NoError(t, repo.Save(ctx, stored))

	updated, err := repo.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, updated.Status)
	assert.Equal(t, stored.Version+1, updated.Version)
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("ORD-1", time.Now())
	require.NoError(t, repo.Create(ctx, order))

	order.Version = 42
	assert.ErrorIs(t, repo.Save(ctx, order), domain.ErrOrderVersionConflict)
}

func TestOrderRepository_SaveMissing(t *testing.T) {
	err := memory.NewOrderRepository().Save(context.Background(), newOrder("ghost", time.Now()))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_CachedTotal(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	_, ok, err := repo.CachedTotal(ctx, "ORD-1")
	require.NoError(t, err)
	assert.False(t, ok)

	order := newOrder("ORD-1", time.Now())
	require.NoError(t, repo.Create(ctx, order))

	total, ok, err := repo.CachedTotal(ctx, "ORD-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "18.59", total.String())

	stored, err := repo.Get(ctx, "ORD-1")
	require.NoError(t, err)
	stored.Items = append(stored.Items, domain.OrderItem{SKU: "C300", Qty: 1, Price: decimal.NewFromInt(10)})
	require.NoError(t, repo.Save(ctx, stored))

	total, ok, err = repo.CachedTotal(ctx, "ORD-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "29.59", total.String())
}

func TestOrderRepository_ConcurrentSaveSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Create(ctx, newOrder("ORD-1", time.Now())))

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			order, err := repo.Get(ctx, "ORD-1")
			if err != nil {
				return
			}
			order.Version = 0
			err = repo.Save(ctx, order)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if domain.IsVersionConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)
}
