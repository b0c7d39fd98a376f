package usecase

import (
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
)

// ORDER USECASE

// CreateOrderReq — запрос на оформление заказа.
type CreateOrderReq struct {
	UserID          string
	Items           []OrderItemReq
	ShippingAddress string
}

// OrderItemReq — строка заказа в запросе. Цена берётся из каталога.
type OrderItemReq struct {
	ProductID string
	Quantity  int64
}

// ListReq — постраничный запрос списка сущностей пользователя.
type ListReq struct {
	UserID string
	Limit  int
	Offset int
}

// OrdersPage — страница заказов пользователя.
type OrdersPage struct {
	Items   []domain.Order
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// CancelOrderRes — результат отмены. RestockSkipped содержит товары, которые
// уже удалены из каталога, поэтому их остаток не был возвращён.
type CancelOrderRes struct {
	Order          *domain.Order
	RestockSkipped []string
}

// PRODUCT USECASE

// CreateProductReq — запрос на добавление товара.
type CreateProductReq struct {
	OwnerID     string
	Name        string
	Description string
	Price       int64
	Category    string
	Stock       int64
	Status      string
}

// UpdateProductReq — частичное обновление товара владельцем. nil оставляет поле без изменений.
type UpdateProductReq struct {
	ID          string
	OwnerID     string
	Name        *string
	Description *string
	Price       *int64
	Category    *string
	Stock       *int64
	Status      *string
}

// GetProductsReq запрос информации о продуктах по их идентификаторам.
type GetProductsReq struct {
	IDs []string
}

// GetProductsRes — ответ с данными запрошенных продуктов.
type GetProductsRes struct {
	Products         []ProductInfo
	NotFoundProducts []string
}

// ProductInfo — DTO с информацией о продукте для внешнего использования и кэша.
type ProductInfo struct {
	ID       string
	OwnerID  string
	Name     string
	Category string
	Price    int64
	Stock    int64
	Status   string
}

// ProductsPage — страница товаров владельца.
type ProductsPage struct {
	Items   []domain.Product
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	OrderCreated       OutboxEventType = "order.created"
	OrderStatusChanged OutboxEventType = "order.status_changed"
	OrderCancelled     OutboxEventType = "order.cancelled"
)

// OutboxEvent — событие, записанное в той же транзакции, что и изменение заказа.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	AggregateID string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// OrderEventPayload — тело события заказа в outbox и Kafka.
type OrderEventPayload struct {
	EventID        string             `json:"event_id"`
	EventType      OutboxEventType    `json:"event_type"`
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount    int64              `json:"total_amount"`
	Items          []OrderEventItem   `json:"items"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
}

// INFRASTRUCTURE

// WriteRawMessageReq — готовое сообщение для брокера. Key задаёт партицию.
type WriteRawMessageReq struct {
	Key     string
	Payload []byte
}

// MAPPERS

func NewProductInfo(p *domain.Product) ProductInfo {
	return ProductInfo{
		ID:       p.ID,
		OwnerID:  p.OwnerID,
		Name:     p.Name,
		Category: string(p.Category),
		Price:    p.Price,
		Stock:    p.Stock,
		Status:   string(p.Status),
	}
}

func NewGetProductsRes(pr []ProductInfo, notFoundProducts []string) *GetProductsRes {
	return &GetProductsRes{
		Products:         pr,
		NotFoundProducts: notFoundProducts,
	}
}

func NewGetProductsReq(ids []string) *GetProductsReq {
	return &GetProductsReq{IDs: ids}
}

func NewWriteRawMessageReq(key string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		Key:     key,
		Payload: payload,
	}
}

func NewCreateOrderReq(userID string, items []OrderItemReq, shippingAddress string) *CreateOrderReq {
	return &CreateOrderReq{
		UserID:          userID,
		Items:           items,
		ShippingAddress: shippingAddress,
	}
}

func NewListReq(userID string, limit, offset int) *ListReq {
	return &ListReq{UserID: userID, Limit: limit, Offset: offset}
}
