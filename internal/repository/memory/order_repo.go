package memory

import (
	"context"
	"sort"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/pkg/e"
)

type OrderRepo struct {
	store *Store
}

func NewOrderRepo(store *Store) *OrderRepo {
	return &OrderRepo{store: store}
}

func (r *OrderRepo) Create(ctx context.Context, order *domain.Order) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	if _, exists := r.store.orders[order.ID]; exists {
		return e.Wrap("order "+order.ID, e.ErrStatusBadRequest)
	}
	r.store.seq++
	r.store.orders[order.ID] = storedOrder{order: copyOrder(*order), seq: r.store.seq}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	stored, ok := r.store.orders[id]
	if !ok {
		return nil, e.ErrRecordNotFound
	}
	o := copyOrder(stored.order)
	return &o, nil
}

// GetForUpdate: внутри транзакции Store уже эксклюзивен.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	stored, ok := r.store.orders[id]
	if !ok || stored.order.Status != from {
		return false, nil
	}
	stored.order.Status = to
	stored.order.UpdatedAt = at
	r.store.orders[id] = stored
	return true, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	owned := make([]storedOrder, 0)
	for _, stored := range r.store.orders {
		if stored.order.UserID == userID {
			owned = append(owned, stored)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.seq > b.seq
		}
		return a.order.CreatedAt.After(b.order.CreatedAt)
	})

	orders := make([]domain.Order, len(owned))
	for i, stored := range owned {
		orders[i] = copyOrder(stored.order)
	}

	return page(orders, limit, offset), len(orders), nil
}
