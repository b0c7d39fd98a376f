// Package memory — хранилище в памяти процесса. Используется для локального
// запуска без PostgreSQL и в тестах бизнес-логики.
package memory

import (
	"context"
	"sync"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
)

type txKey struct{}

// Store хранит все сущности. Транзакции сериализуются одним мьютексом,
// при ошибке состояние восстанавливается из снимка.
type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]storedOrder
	limits   map[string]domain.UserLimits
	outbox   []usecase.OutboxEvent
	seq      int64
	outboxID int64
}

type storedOrder struct {
	order domain.Order
	seq   int64
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		orders:   make(map[string]storedOrder),
		limits:   make(map[string]domain.UserLimits),
	}
}

// lock берёт мьютекс, если вызов не находится внутри транзакции этого Store.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

type snapshot struct {
	products map[string]domain.Product
	orders   map[string]storedOrder
	limits   map[string]domain.UserLimits
	outbox   []usecase.OutboxEvent
	seq      int64
	outboxID int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products: make(map[string]domain.Product, len(s.products)),
		orders:   make(map[string]storedOrder, len(s.orders)),
		limits:   make(map[string]domain.UserLimits, len(s.limits)),
		outbox:   make([]usecase.OutboxEvent, len(s.outbox)),
		seq:      s.seq,
		outboxID: s.outboxID,
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.orders {
		v.order = copyOrder(v.order)
		snap.orders[k] = v
	}
	for k, v := range s.limits {
		snap.limits[k] = v
	}
	copy(snap.outbox, s.outbox)
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.orders = snap.orders
	s.limits = snap.limits
	s.outbox = snap.outbox
	s.seq = snap.seq
	s.outboxID = snap.outboxID
}

// TxManager реализует usecase.TxManager поверх Store.
type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Do выполняет fn атомарно. Вложенный вызов присоединяется к внешней транзакции.
func (t *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s := t.store
	if s.inTx(ctx) {
		return fn(ctx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}

	// Отменённый контекст не фиксирует изменения, как и в PostgreSQL.
	return ctx.Err()
}

func copyOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
