package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/repository/memory"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/stretchr/testify/require"
)

const (
	owner   = "seller-1"
	buyer   = "buyer-1"
	address = "Lenina st. 1, Moscow"
)

var errBoom = errors.New("boom")

// env — бизнес-логика поверх хранилища в памяти.
type env struct {
	store    *memory.Store
	tx       *memory.TxManager
	products *memory.ProductRepo
	orders   usecase.OrderRepository
	limits   *memory.UserLimitsRepo
	outbox   *memory.OutboxEventRepo
	cache    usecase.CacheRepository

	orderUC   *usecase.OrderUseCase
	productUC *usecase.ProductUseCase
	limitsUC  *usecase.LimitsUseCase
}

type envOption func(*env)

func withOrderRepo(wrap func(usecase.OrderRepository) usecase.OrderRepository) envOption {
	return func(e *env) { e.orders = wrap(e.orders) }
}

func withCache(c usecase.CacheRepository) envOption {
	return func(e *env) { e.cache = c }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	store := memory.NewStore()
	en := &env{
		store:    store,
		tx:       memory.NewTxManager(store),
		products: memory.NewProductRepo(store),
		orders:   memory.NewOrderRepo(store),
		limits:   memory.NewUserLimitsRepo(store),
		outbox:   memory.NewOutboxEventRepo(store),
	}
	for _, opt := range opts {
		opt(en)
	}

	log := logger.NewNopLogger()
	orderCfg := cfg.DefaultOrderCfg()

	en.orderUC = usecase.NewOrderUC(en.tx, en.products, en.products, en.orders, en.outbox, en.cache, log, orderCfg)
	en.productUC = usecase.NewProductUC(en.tx, en.products, en.products, en.cache, log, orderCfg)
	en.limitsUC = usecase.NewLimitsUC(en.limits, log)

	return en
}

func (en *env) addProduct(t *testing.T, name string, price, stock int64) *domain.Product {
	t.Helper()

	p, err := en.productUC.CreateProduct(context.Background(), &usecase.CreateProductReq{
		OwnerID:     owner,
		Name:        name,
		Description: "test product " + name,
		Price:       price,
		Category:    string(domain.CategoryHome),
		Stock:       stock,
	})
	require.NoError(t, err)
	return p
}

func (en *env) stock(t *testing.T, id string) int64 {
	t.Helper()

	p, err := en.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (en *env) order(t *testing.T, userID string, items ...usecase.OrderItemReq) (*domain.Order, error) {
	t.Helper()
	return en.orderUC.CreateOrder(context.Background(), usecase.NewCreateOrderReq(userID, items, address))
}

func item(productID string, qty int64) usecase.OrderItemReq {
	return usecase.OrderItemReq{ProductID: productID, Quantity: qty}
}

// failingOrderRepo отказывает в сохранении заказа после того, как остатки уже списаны.
type failingOrderRepo struct {
	usecase.OrderRepository
	failCreate       bool
	failUpdateStatus bool
}

func (r *failingOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	if r.failCreate {
		return errBoom
	}
	return r.OrderRepository.Create(ctx, order)
}

func (r *failingOrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	if r.failUpdateStatus {
		return false, errBoom
	}
	return r.OrderRepository.UpdateStatus(ctx, id, from, to, at)
}
