package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL.
type ProductModel struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Price       int64     `db:"price"`
	Category    string    `db:"category"`
	Stock       int64     `db:"stock"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// OrderModel представляет запись таблицы orders в PostgreSQL.
type OrderModel struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	TotalAmount     int64     `db:"total_amount"`
	ShippingAddress string    `db:"shipping_address"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	Items           []OrderItemModel
}

// OrderItemModel представляет запись таблицы order_items в PostgreSQL.
type OrderItemModel struct {
	OrderID   string `db:"order_id"`
	LineNo    int    `db:"line_no"`
	ProductID string `db:"product_id"`
	Name      string `db:"name"`
	Quantity  int64  `db:"quantity"`
	Price     int64  `db:"price"`
}

// UserLimitsModel представляет запись таблицы user_limits в PostgreSQL.
type UserLimitsModel struct {
	UserID          string    `db:"user_id"`
	Plan            string    `db:"plan"`
	ProductsMax     int64     `db:"products_max"`
	ProductsMin     int64     `db:"products_min"`
	ProductsCurrent int64     `db:"products_current"`
	OrdersMax       int64     `db:"orders_max"`
	OrdersMin       int64     `db:"orders_min"`
	OrdersCurrent   int64     `db:"orders_current"`
	APICallsMax     int64     `db:"api_calls_max"`
	APICallsMin     int64     `db:"api_calls_min"`
	APICallsCurrent int64     `db:"api_calls_current"`
	ResetAt         time.Time `db:"reset_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	AggregateID string     `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
