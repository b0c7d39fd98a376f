package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
)

// TxManager задаёт границу единицы работы: fn выполняется в одной транзакции,
// любая ошибка или паника приводит к откату. Вложенный вызов присоединяется к внешней транзакции.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogRepository — чтение снимка товара. Отсутствующий товар даёт e.ErrRecordNotFound.
type CatalogRepository interface {
	GetSnapshot(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
}

// StockLedger — атомарное изменение остатков одной условной операцией.
type StockLedger interface {
	// TryDecrement уменьшает остаток, только если его хватает. false, если товара нет или остатка мало.
	TryDecrement(ctx context.Context, productID string, qty int64) (bool, error)
	// Increment увеличивает остаток. false, если товара нет.
	Increment(ctx context.Context, productID string, qty int64) (bool, error)
	// SetStock выставляет остаток целиком. Вызывающий держит блокировку строки товара.
	SetStock(ctx context.Context, productID string, stock int64) (bool, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// GetForUpdate читает товар с блокировкой строки до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (*domain.Product, error)
	GetProductsInfo(ctx context.Context, ids []string) ([]ProductInfo, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Product, int, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id, ownerID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// GetForUpdate читает заказ с блокировкой строки до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	// UpdateStatus меняет статус, только если текущий равен from. false, если статус уже другой.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int, error)
}

type UserLimitsRepository interface {
	// Create создаёт запись; false, если запись уже существует.
	Create(ctx context.Context, limits *domain.UserLimits) (bool, error)
	Get(ctx context.Context, userID string) (*domain.UserLimits, error)
	Decrement(ctx context.Context, userID string, limitType domain.LimitType, at time.Time) (bool, error)
	// ResetCounters одним изменением возвращает счётчики к значениям плана, записанного в строке.
	// Если seenResetAt задан, сброс выполняется, только пока reset_at равен ему. Возвращает
	// запись после операции и признак выполненного сброса.
	ResetCounters(ctx context.Context, userID string, at time.Time, seenResetAt *time.Time) (*domain.UserLimits, bool, error)
	SetPlan(ctx context.Context, userID string, plan domain.Plan, at time.Time) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	// MarkAsPending возвращает событие в очередь после неудачной отправки.
	MarkAsPending(ctx context.Context, id int64) error
}

// CacheRepository — кэш карточек товаров. DeleteProducts увеличивает версию товара,
// SetProducts пишет карточку, только если версия осталась той, что вернул Versions до чтения из БД.
type CacheRepository interface {
	GetProducts(ctx context.Context, ids []string) (map[string]ProductInfo, error)
	Versions(ctx context.Context, ids []string) (map[string]int64, error)
	SetProducts(ctx context.Context, products []ProductInfo, versions map[string]int64) error
	DeleteProducts(ctx context.Context, ids []string) error
}
