package usecase_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/repository/memory"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Тесты этого файла моделируют READ COMMITTED без общей блокировки: каждый вызов
// репозитория фиксируется сам, а чужая транзакция успевает закоммититься между чтением и записью.

// autocommitTx выполняет fn без транзакции.
type autocommitTx struct{}

func (autocommitTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// pausingProductRepo останавливается после чтения товара под запись.
type pausingProductRepo struct {
	usecase.ProductRepository
	once      sync.Once
	afterRead func()
}

func (r *pausingProductRepo) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	p, err := r.ProductRepository.GetForUpdate(ctx, id)
	r.once.Do(r.afterRead)
	return p, err
}

func TestUpdateProduct_ConcurrentOrderKeepsStock(t *testing.T) {
	en := newEnv(t)
	ctx := context.Background()
	lamp := en.addProduct(t, "Lamp", 100, 5)

	read := make(chan struct{})
	resume := make(chan struct{})
	repo := &pausingProductRepo{
		ProductRepository: en.products,
		afterRead: func() {
			close(read)
			<-resume
		},
	}
	productUC := usecase.NewProductUC(autocommitTx{}, repo, en.products, nil, logger.NewNopLogger(), cfg.DefaultOrderCfg())

	done := make(chan error, 1)
	go func() {
		_, err := productUC.UpdateProduct(ctx, &usecase.UpdateProductReq{ID: lamp.ID, OwnerID: owner, Name: strPtr("Desk lamp")})
		done <- err
	}()

	<-read
	_, err := en.order(t, buyer, item(lamp.ID, 2))
	require.NoError(t, err)
	require.Equal(t, int64(3), en.stock(t, lamp.ID))

	close(resume)
	require.NoError(t, <-done)

	got, err := en.products.GetByID(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", got.Name)
	assert.Equal(t, int64(3), got.Stock, "name-only edit does not write stock back")
}

func TestUpdateProduct_ExplicitStockGoesThroughLedger(t *testing.T) {
	en := newEnv(t)
	ctx := context.Background()
	lamp := en.addProduct(t, "Lamp", 100, 5)

	ledger := &recordingLedger{StockLedger: en.products}
	productUC := usecase.NewProductUC(en.tx, en.products, ledger, nil, logger.NewNopLogger(), cfg.DefaultOrderCfg())

	_, err := productUC.UpdateProduct(ctx, &usecase.UpdateProductReq{ID: lamp.ID, OwnerID: owner, Price: int64Ptr(150)})
	require.NoError(t, err)
	assert.Empty(t, ledger.recorded())

	updated, err := productUC.UpdateProduct(ctx, &usecase.UpdateProductReq{ID: lamp.ID, OwnerID: owner, Stock: int64Ptr(12)})
	require.NoError(t, err)
	assert.Equal(t, int64(12), updated.Stock)
	assert.Equal(t, []string{"set:" + lamp.ID}, ledger.recorded())
	assert.Equal(t, int64(12), en.stock(t, lamp.ID))
}

// recordingLedger запоминает порядок изменений остатков.
type recordingLedger struct {
	usecase.StockLedger
	mu    sync.Mutex
	calls []string
}

func (l *recordingLedger) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *recordingLedger) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *recordingLedger) TryDecrement(ctx context.Context, id string, qty int64) (bool, error) {
	l.record("dec:" + id)
	return l.StockLedger.TryDecrement(ctx, id, qty)
}

func (l *recordingLedger) Increment(ctx context.Context, id string, qty int64) (bool, error) {
	l.record("inc:" + id)
	return l.StockLedger.Increment(ctx, id, qty)
}

func (l *recordingLedger) SetStock(ctx context.Context, id string, stock int64) (bool, error) {
	l.record("set:" + id)
	return l.StockLedger.SetStock(ctx, id, stock)
}

func TestCreateAndCancelOrder_StockRowsInSortedOrder(t *testing.T) {
	en := newEnv(t)
	ctx := context.Background()

	products := []*domain.Product{
		en.addProduct(t, "Mug", 100, 5),
		en.addProduct(t, "Plate", 100, 5),
		en.addProduct(t, "Bowl", 100, 5),
	}
	ids := []string{products[0].ID, products[1].ID, products[2].ID}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	// Строки заказа в обратном порядке сортировки
	reversed := append([]string(nil), sorted...)
	sort.Sort(sort.Reverse(sort.StringSlice(reversed)))

	ledger := &recordingLedger{StockLedger: en.products}
	orderUC := usecase.NewOrderUC(en.tx, en.products, ledger, en.orders, en.outbox, nil, logger.NewNopLogger(), cfg.DefaultOrderCfg())

	order, err := orderUC.CreateOrder(ctx, usecase.NewCreateOrderReq(buyer, []usecase.OrderItemReq{
		item(reversed[0], 1), item(reversed[1], 1), item(reversed[2], 1),
	}, address))
	require.NoError(t, err)
	assert.Equal(t, reversed[0], order.Items[0].ProductID, "lines keep request order")

	_, err = orderUC.CancelOrder(ctx, buyer, order.ID)
	require.NoError(t, err)

	want := []string{
		"dec:" + sorted[0], "dec:" + sorted[1], "dec:" + sorted[2],
		"inc:" + sorted[0], "inc:" + sorted[1], "inc:" + sorted[2],
	}
	assert.Equal(t, want, ledger.recorded())
}

func TestCreateOrder_OppositeLineOrdersBothSucceed(t *testing.T) {
	en := newEnv(t)
	a := en.addProduct(t, "Mug", 100, 50)
	b := en.addProduct(t, "Plate", 100, 50)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := en.orderUC.CreateOrder(context.Background(),
				usecase.NewCreateOrderReq(buyer, []usecase.OrderItemReq{item(a.ID, 1), item(b.ID, 1)}, address))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := en.orderUC.CreateOrder(context.Background(),
				usecase.NewCreateOrderReq(buyer, []usecase.OrderItemReq{item(b.ID, 1), item(a.ID, 1)}, address))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(30), en.stock(t, a.ID))
	assert.Equal(t, int64(30), en.stock(t, b.ID))
}

// planSwitchingLimitsRepo меняет план прямо перед сбросом, как параллельный ChangePlan.
type planSwitchingLimitsRepo struct {
	usecase.UserLimitsRepository
	beforeReset func()
}

func (r *planSwitchingLimitsRepo) ResetCounters(ctx context.Context, userID string, at time.Time, seenResetAt *time.Time) (*domain.UserLimits, bool, error) {
	r.beforeReset()
	return r.UserLimitsRepository.ResetCounters(ctx, userID, at, seenResetAt)
}

func TestResetMonthlyLimits_KeepsConcurrentPlanChange(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewUserLimitsRepo(memory.NewStore())
	log := logger.NewNopLogger()

	planUC := usecase.NewLimitsUC(inner, log)
	_, err := planUC.RegisterUser(ctx, buyer, "free")
	require.NoError(t, err)

	var once sync.Once
	repo := &planSwitchingLimitsRepo{
		UserLimitsRepository: inner,
		beforeReset: func() {
			once.Do(func() {
				_, err := planUC.ChangePlan(ctx, buyer, "premium")
				require.NoError(t, err)
			})
		},
	}
	resetUC := usecase.NewLimitsUC(repo, log)

	reset, err := resetUC.ResetMonthlyLimits(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPremium, reset.Plan)
	assert.True(t, reset.Orders.Unlimited())
	assert.Equal(t, int64(10000), reset.APICalls.Current)

	stored, err := planUC.GetLimits(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPremium, stored.Plan)
	assert.Equal(t, reset.APICalls, stored.APICalls)
}

func TestRolloverMonth_OnlyOnceForSameSnapshot(t *testing.T) {
	en := newEnv(t)
	ctx := context.Background()

	registered, err := en.limitsUC.RegisterUser(ctx, buyer, "free")
	require.NoError(t, err)
	seen := registered.ResetAt

	_, err = en.limitsUC.DecrementLimit(ctx, buyer, domain.LimitOrders)
	require.NoError(t, err)

	// Первый из двух запросов на границе месяца сбрасывает счётчики
	limits, reset, err := en.limitsUC.RolloverMonth(ctx, buyer, seen)
	require.NoError(t, err)
	require.True(t, reset)
	assert.Equal(t, int64(20), limits.Orders.Current)

	_, err = en.limitsUC.DecrementLimit(ctx, buyer, domain.LimitOrders)
	require.NoError(t, err)

	// Второй видел тот же reset_at и ничего не стирает
	limits, reset, err = en.limitsUC.RolloverMonth(ctx, buyer, seen)
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Equal(t, int64(19), limits.Orders.Current)

	_, _, err = en.limitsUC.RolloverMonth(ctx, "ghost", seen)
	require.Error(t, err)
}

// gatedCache задерживает первое фоновое заполнение кэша до сигнала.
type gatedCache struct {
	usecase.CacheRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (c *gatedCache) SetProducts(ctx context.Context, products []usecase.ProductInfo, versions map[string]int64) error {
	first := false
	c.once.Do(func() { first = true })
	if !first {
		return c.CacheRepository.SetProducts(ctx, products, versions)
	}

	close(c.entered)
	<-c.release
	defer close(c.done)
	return c.CacheRepository.SetProducts(ctx, products, versions)
}

func TestGetProductsInfo_LateFillDoesNotCacheStaleStock(t *testing.T) {
	inner := memory.NewCacheRepo(time.Minute)
	cache := &gatedCache{
		CacheRepository: inner,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
		done:            make(chan struct{}),
	}
	en := newEnv(t, withCache(cache))
	ctx := context.Background()

	lamp := en.addProduct(t, "Lamp", 100, 5)

	res, err := en.productUC.GetProductsInfo(ctx, usecase.NewGetProductsReq([]string{lamp.ID}))
	require.NoError(t, err)
	require.Equal(t, int64(5), res.Products[0].Stock)

	// Заполнение прочитало остаток 5 и ещё не записало его, а заказ уже закоммичен
	<-cache.entered
	_, err = en.order(t, buyer, item(lamp.ID, 2))
	require.NoError(t, err)

	close(cache.release)
	<-cache.done

	cached, err := inner.GetProducts(ctx, []string{lamp.ID})
	require.NoError(t, err)
	assert.Empty(t, cached, "fill that lost the race with invalidation is dropped")

	res, err = en.productUC.GetProductsInfo(ctx, usecase.NewGetProductsReq([]string{lamp.ID}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Products[0].Stock)
}
