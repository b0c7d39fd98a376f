package memory

import (
	"context"
	"sort"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
)

// ProductRepo реализует каталог, складской учёт и CRUD товаров.
type ProductRepo struct {
	store *Store
}

func NewProductRepo(store *Store) *ProductRepo {
	return &ProductRepo{store: store}
}

func (r *ProductRepo) Create(ctx context.Context, product *domain.Product) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	if _, exists := r.store.products[product.ID]; exists {
		return e.Wrap("product "+product.ID, e.ErrStatusBadRequest)
	}
	r.store.products[product.ID] = *product
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	p, ok := r.store.products[id]
	if !ok {
		return nil, e.ErrRecordNotFound
	}
	return &p, nil
}

// GetForUpdate внутри транзакции равен GetByID: Store эксклюзивен до её конца.
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *ProductRepo) GetSnapshot(ctx context.Context, id string) (*domain.ProductSnapshot, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Snapshot(), nil
}

func (r *ProductRepo) GetProductsInfo(ctx context.Context, ids []string) ([]usecase.ProductInfo, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	result := make([]usecase.ProductInfo, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.store.products[id]; ok {
			result = append(result, usecase.NewProductInfo(&p))
		}
	}
	return result, nil
}

func (r *ProductRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Product, int, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	owned := make([]domain.Product, 0)
	for _, p := range r.store.products {
		if p.OwnerID == ownerID {
			owned = append(owned, p)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	return page(owned, limit, offset), len(owned), nil
}

func (r *ProductRepo) Update(ctx context.Context, product *domain.Product) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	current, ok := r.store.products[product.ID]
	if !ok || current.OwnerID != product.OwnerID {
		return e.ErrRecordNotFound
	}
	updated := *product
	updated.CreatedAt = current.CreatedAt
	updated.Stock = current.Stock
	r.store.products[product.ID] = updated
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id, ownerID string) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	current, ok := r.store.products[id]
	if !ok || current.OwnerID != ownerID {
		return e.ErrRecordNotFound
	}
	delete(r.store.products, id)
	return nil
}

// TryDecrement — проверка и списание выполняются под одной блокировкой.
func (r *ProductRepo) TryDecrement(ctx context.Context, id string, qty int64) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	p, ok := r.store.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = nowUTC()
	r.store.products[id] = p
	return true, nil
}

func (r *ProductRepo) Increment(ctx context.Context, id string, qty int64) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	p, ok := r.store.products[id]
	if !ok {
		return false, nil
	}
	p.Stock += qty
	p.UpdatedAt = nowUTC()
	r.store.products[id] = p
	return true, nil
}

func (r *ProductRepo) SetStock(ctx context.Context, id string, stock int64) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	p, ok := r.store.products[id]
	if !ok {
		return false, nil
	}
	p.Stock = stock
	p.UpdatedAt = nowUTC()
	r.store.products[id] = p
	return true, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
