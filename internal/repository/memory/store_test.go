package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, repo *ProductRepo, id string, stock int64) {
	t.Helper()
	p := domain.NewProduct(id, "owner", "Lamp", "Warm light lamp", 100, domain.CategoryHome, stock, "", time.Now().UTC())
	require.NoError(t, repo.Create(context.Background(), p))
}

func TestTxManager_RollbackOnError(t *testing.T) {
	store := NewStore()
	tx := NewTxManager(store)
	products := NewProductRepo(store)
	outbox := NewOutboxEventRepo(store)
	seedProduct(t, products, "p1", 5)

	boom := errors.New("boom")
	err := tx.Do(context.Background(), func(ctx context.Context) error {
		ok, err := products.TryDecrement(ctx, "p1", 3)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = outbox.Create(ctx, &usecase.OutboxEvent{EventID: "ev", EventType: usecase.OrderCreated})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Stock)
	assert.Empty(t, outbox.Events(context.Background()))
}

func TestTxManager_RollbackOnPanic(t *testing.T) {
	store := NewStore()
	tx := NewTxManager(store)
	products := NewProductRepo(store)
	seedProduct(t, products, "p1", 5)

	assert.Panics(t, func() {
		_ = tx.Do(context.Background(), func(ctx context.Context) error {
			_, _ = products.TryDecrement(ctx, "p1", 5)
			panic("unexpected")
		})
	})

	p, err := products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Stock)

	ok, err := products.TryDecrement(context.Background(), "p1", 1)
	require.NoError(t, err)
	assert.True(t, ok, "store is usable after panic")
}

func TestTxManager_NestedJoinsOuter(t *testing.T) {
	store := NewStore()
	tx := NewTxManager(store)
	products := NewProductRepo(store)
	seedProduct(t, products, "p1", 5)

	err := tx.Do(context.Background(), func(ctx context.Context) error {
		if err := tx.Do(ctx, func(ctx context.Context) error {
			_, err := products.TryDecrement(ctx, "p1", 2)
			return err
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	require.Error(t, err)

	p, err := products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Stock)
}

func TestTxManager_CancelledContext(t *testing.T) {
	store := NewStore()
	tx := NewTxManager(store)
	products := NewProductRepo(store)
	seedProduct(t, products, "p1", 5)

	ctx, cancel := context.WithCancel(context.Background())
	err := tx.Do(ctx, func(ctx context.Context) error {
		_, err := products.TryDecrement(ctx, "p1", 1)
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	p, err := products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Stock)
}

func TestProductRepo_Ledger(t *testing.T) {
	store := NewStore()
	products := NewProductRepo(store)
	ctx := context.Background()
	seedProduct(t, products, "p1", 2)

	ok, err := products.TryDecrement(ctx, "p1", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = products.TryDecrement(ctx, "p1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = products.Increment(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	err = products.Delete(ctx, "p1", "someone")
	assert.ErrorIs(t, err, e.ErrRecordNotFound)
}

func TestProductRepo_UpdateKeepsStock(t *testing.T) {
	store := NewStore()
	products := NewProductRepo(store)
	ctx := context.Background()
	seedProduct(t, products, "p1", 5)

	card, err := products.GetForUpdate(ctx, "p1")
	require.NoError(t, err)

	ok, err := products.TryDecrement(ctx, "p1", 2)
	require.NoError(t, err)
	require.True(t, ok)

	card.Name = "Desk lamp"
	require.NoError(t, products.Update(ctx, card))

	stored, err := products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", stored.Name)
	assert.Equal(t, int64(3), stored.Stock)

	ok, err = products.SetStock(ctx, "p1", 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(9), mustStock(t, products, "p1"))

	ok, err = products.SetStock(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func mustStock(t *testing.T, products *ProductRepo, id string) int64 {
	t.Helper()
	p, err := products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestUserLimitsRepo_ResetCounters(t *testing.T) {
	store := NewStore()
	limits := NewUserLimitsRepo(store)
	ctx := context.Background()

	registered := domain.NewUserLimits("u1", domain.PlanFree, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	_, err := limits.Create(ctx, registered)
	require.NoError(t, err)
	require.NoError(t, limits.SetPlan(ctx, "u1", domain.PlanStandard, time.Now()))

	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	reset, ok, err := limits.ResetCounters(ctx, "u1", feb, &registered.ResetAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.PlanStandard, reset.Plan)
	assert.Equal(t, int64(100), reset.Orders.Current)
	assert.Equal(t, feb, reset.ResetAt)

	// Устаревший снимок reset_at
	_, ok, err = limits.ResetCounters(ctx, "u1", feb.Add(time.Hour), &registered.ResetAt)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = limits.ResetCounters(ctx, "ghost", feb, nil)
	assert.ErrorIs(t, err, e.ErrRecordNotFound)
}

func TestOrderRepo_UpdateStatusCompareAndSet(t *testing.T) {
	store := NewStore()
	orders := NewOrderRepo(store)
	ctx := context.Background()

	o, err := domain.NewOrder("o1", "u1", []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: 10}}, "somewhere far", time.Now())
	require.NoError(t, err)
	require.NoError(t, orders.Create(ctx, o))

	ok, err := orders.UpdateStatus(ctx, "o1", domain.OrderPending, domain.OrderProcessing, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = orders.UpdateStatus(ctx, "o1", domain.OrderPending, domain.OrderCancelled, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "stale expected status")

	got, err := orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessing, got.Status)

	got.Items[0].Quantity = 99
	again, err := orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Items[0].Quantity, "callers get copies")
}

func TestOutboxEventRepo_Cycle(t *testing.T) {
	store := NewStore()
	outbox := NewOutboxEventRepo(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := outbox.Create(ctx, &usecase.OutboxEvent{EventID: "ev", EventType: usecase.OrderCreated})
		require.NoError(t, err)
	}

	batch, err := outbox.GetAndMarkAsProcessing(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].ID)

	require.NoError(t, outbox.MarkAsProcessed(ctx, batch[0].ID))
	require.NoError(t, outbox.MarkAsPending(ctx, batch[1].ID))

	next, err := outbox.GetAndMarkAsProcessing(ctx, 10)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, int64(2), next[0].ID)
	assert.Equal(t, int64(3), next[1].ID)

	events := outbox.Events(ctx)
	assert.Equal(t, usecase.Processed, events[0].Status)
	assert.NotNil(t, events[0].ProcessedAt)
}

func TestCacheRepo_TTL(t *testing.T) {
	cache := NewCacheRepo(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.SetProducts(ctx, []usecase.ProductInfo{{ID: "p1"}}, map[string]int64{"p1": 0}))
	got, err := cache.GetProducts(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	time.Sleep(40 * time.Millisecond)
	got, err = cache.GetProducts(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCacheRepo_FillAfterInvalidationIsDropped(t *testing.T) {
	cache := NewCacheRepo(time.Minute)
	ctx := context.Background()

	versions, err := cache.Versions(ctx, []string{"p1", "p2"})
	require.NoError(t, err)

	// Заказ по p1 закоммичен между чтением из БД и записью в кэш
	require.NoError(t, cache.DeleteProducts(ctx, []string{"p1"}))

	require.NoError(t, cache.SetProducts(ctx, []usecase.ProductInfo{
		{ID: "p1", Stock: 5},
		{ID: "p2", Stock: 7},
	}, versions))

	got, err := cache.GetProducts(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.NotContains(t, got, "p1")
	assert.Equal(t, int64(7), got["p2"].Stock)
}
