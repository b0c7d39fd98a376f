package pgdb

import (
	"context"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const productColumns = `id, owner_id, name, description, price, category, stock, status, created_at, updated_at`

// ProductRepo реализует каталог, складской учёт и CRUD товаров поверх PostgreSQL.
// Внутри транзакции запросы идут через неё, иначе через пул.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

func (p *ProductRepo) Create(ctx context.Context, product *domain.Product) error {
	q := tr.QuerierFromCtx(ctx, p.pool)
	model := p.conv.ToModel(product)

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := q.Exec(ctx, query,
		model.ID, model.OwnerID, model.Name, model.Description, model.Price,
		model.Category, model.Stock, model.Status, model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (p *ProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return p.get(ctx, id, false)
}

// GetForUpdate блокирует строку товара до конца транзакции.
func (p *ProductRepo) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := tr.TxFromCtx(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	return p.get(ctx, id, true)
}

func (p *ProductRepo) get(ctx context.Context, id string, forUpdate bool) (*domain.Product, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	model, err := scanProduct(q.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, e.ErrRecordNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.conv.ToEntity(model), nil
}

// GetSnapshot — поиск по каталогу для оформления заказа.
func (p *ProductRepo) GetSnapshot(ctx context.Context, id string) (*domain.ProductSnapshot, error) {
	product, err := p.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return product.Snapshot(), nil
}

// GetProductsInfo возвращает краткую информацию о продуктах по их идентификаторам.
func (p *ProductRepo) GetProductsInfo(ctx context.Context, ids []string) ([]usecase.ProductInfo, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	query := `
		SELECT id, owner_id, name, category, price, stock, status
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ProductInfo, 0)
	for rows.Next() {
		var product usecase.ProductInfo
		if err := rows.Scan(
			&product.ID, &product.OwnerID, &product.Name, &product.Category,
			&product.Price, &product.Stock, &product.Status,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, product)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

func (p *ProductRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Product, int, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := q.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		model, err := scanProduct(rows)
		if err != nil {
			return nil, 0, e.Wrap(whereami.WhereAmI(), err)
		}
		products = append(products, *p.conv.ToEntity(model))
	}

	if err := rows.Err(); err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return products, total, nil
}

// Update перезаписывает карточку товара владельца. Остаток не трогает: он меняется только через SetStock,
// TryDecrement и Increment.
func (p *ProductRepo) Update(ctx context.Context, product *domain.Product) error {
	q := tr.QuerierFromCtx(ctx, p.pool)
	model := p.conv.ToModel(product)

	query := `
		UPDATE products
		SET name = $3, description = $4, price = $5, category = $6,
			status = $7, updated_at = $8
		WHERE id = $1 AND owner_id = $2
	`

	tag, err := q.Exec(ctx, query,
		model.ID, model.OwnerID, model.Name, model.Description, model.Price,
		model.Category, model.Status, model.UpdatedAt,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.ErrRecordNotFound
	}

	return nil
}

func (p *ProductRepo) Delete(ctx context.Context, id, ownerID string) error {
	q := tr.QuerierFromCtx(ctx, p.pool)

	tag, err := q.Exec(ctx, `DELETE FROM products WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.ErrRecordNotFound
	}

	return nil
}

// TryDecrement — условие и списание в одном UPDATE, без чтения перед записью.
func (p *ProductRepo) TryDecrement(ctx context.Context, id string, qty int64) (bool, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	tag, err := q.Exec(ctx, query, id, qty)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (p *ProductRepo) Increment(ctx context.Context, id string, qty int64) (bool, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, id, qty)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

// SetStock выставляет остаток владельцем. Вызывается под блокировкой строки из GetForUpdate.
func (p *ProductRepo) SetStock(ctx context.Context, id string, stock int64) (bool, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	tag, err := q.Exec(ctx, `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`, id, stock)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*converter.ProductModel, error) {
	var model converter.ProductModel
	err := row.Scan(
		&model.ID, &model.OwnerID, &model.Name, &model.Description, &model.Price,
		&model.Category, &model.Stock, &model.Status, &model.CreatedAt, &model.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &model, nil
}
