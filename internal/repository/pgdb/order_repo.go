package pgdb

import (
	"context"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const orderColumns = `id, user_id, total_amount, shipping_address, status, created_at, updated_at`

// OrderRepo хранит заказы в таблицах orders и order_items.
type OrderRepo struct {
	pool *pgxpool.Pool
	conv converter.OrderConverter
}

func NewOrderRepo(pool *pgxpool.Pool, conv converter.OrderConverter) *OrderRepo {
	return &OrderRepo{
		pool: pool,
		conv: conv,
	}
}

// Create сохраняет заказ и его строки. Требует транзакцию в контексте.
func (o *OrderRepo) Create(ctx context.Context, order *domain.Order) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model := o.conv.ToModel(order)

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(ctx, query,
		model.ID, model.UserID, model.TotalAmount, model.ShippingAddress,
		model.Status, model.CreatedAt, model.UpdatedAt,
	); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	rows := make([][]any, len(model.Items))
	for i, item := range model.Items {
		rows[i] = []any{item.OrderID, item.LineNo, item.ProductID, item.Name, item.Quantity, item.Price}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "line_no", "product_id", "name", "quantity", "price"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (o *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return o.get(ctx, id, false)
}

// GetForUpdate блокирует строку заказа до конца транзакции.
func (o *OrderRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := tr.TxFromCtx(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	return o.get(ctx, id, true)
}

func (o *OrderRepo) get(ctx context.Context, id string, forUpdate bool) (*domain.Order, error) {
	q := tr.QuerierFromCtx(ctx, o.pool)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var model converter.OrderModel
	if err := q.QueryRow(ctx, query, id).Scan(
		&model.ID, &model.UserID, &model.TotalAmount, &model.ShippingAddress,
		&model.Status, &model.CreatedAt, &model.UpdatedAt,
	); err != nil {
		if noRows(err) {
			return nil, e.ErrRecordNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	items, err := o.loadItems(ctx, q, []string{model.ID})
	if err != nil {
		return nil, err
	}
	model.Items = items[model.ID]

	return o.conv.ToEntity(&model), nil
}

// UpdateStatus — compare-and-set по текущему статусу.
func (o *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	q := tr.QuerierFromCtx(ctx, o.pool)

	query := `
		UPDATE orders
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	tag, err := q.Exec(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (o *OrderRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int, error) {
	q := tr.QuerierFromCtx(ctx, o.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := q.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	models := make([]converter.OrderModel, 0, limit)
	for rows.Next() {
		var model converter.OrderModel
		if err := rows.Scan(
			&model.ID, &model.UserID, &model.TotalAmount, &model.ShippingAddress,
			&model.Status, &model.CreatedAt, &model.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, 0, e.Wrap(whereami.WhereAmI(), err)
		}
		models = append(models, model)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	items, err := o.loadItems(ctx, q, ids)
	if err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, len(models))
	for i := range models {
		models[i].Items = items[models[i].ID]
		orders[i] = *o.conv.ToEntity(&models[i])
	}

	return orders, total, nil
}

func (o *OrderRepo) loadItems(ctx context.Context, q tr.Querier, orderIDs []string) (map[string][]converter.OrderItemModel, error) {
	result := make(map[string][]converter.OrderItemModel, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT order_id, line_no, product_id, name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`

	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var item converter.OrderItemModel
		if err := rows.Scan(
			&item.OrderID, &item.LineNo, &item.ProductID, &item.Name, &item.Quantity, &item.Price,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
