package domain

import (
	"math"
	"slices"
	"time"

	"github.com/DRSN-tech/order-backend/pkg/e"
)

// OrderItem — строка заказа. Цена фиксируется в момент оформления.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int64
	Price     int64 // копейки
}

// Order — заказ пользователя. TotalAmount всегда равен сумме Quantity*Price по строкам.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalAmount     int64
	ShippingAddress string
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder собирает заказ в статусе pending и считает итоговую сумму.
func NewOrder(id, userID string, items []OrderItem, shippingAddress string, now time.Time) (*Order, error) {
	total, err := CalculateTotal(items)
	if err != nil {
		return nil, err
	}

	lines := make([]OrderItem, len(items))
	copy(lines, items)

	return &Order{
		ID:              id,
		UserID:          userID,
		Items:           lines,
		TotalAmount:     total,
		ShippingAddress: shippingAddress,
		Status:          OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CalculateTotal считает сумму заказа с контролем переполнения.
func CalculateTotal(items []OrderItem) (int64, error) {
	var total int64
	for _, item := range items {
		if item.Quantity < 0 || item.Price < 0 {
			return 0, e.NewValidationError("items", "negative quantity or price")
		}
		if item.Price != 0 && item.Quantity > math.MaxInt64/item.Price {
			return 0, e.NewValidationError("items", "order total is too large")
		}
		line := item.Quantity * item.Price
		if total > math.MaxInt64-line {
			return 0, e.NewValidationError("items", "order total is too large")
		}
		total += line
	}
	return total, nil
}

// Quantities суммирует количество по товарам.
func (o *Order) Quantities() ([]string, map[string]int64) {
	return AggregateQuantities(o.Items)
}

// AggregateQuantities суммирует количество по товарам. Идентификаторы отсортированы:
// строки товаров блокируются всегда в одном порядке, иначе встречные заказы взаимоблокируются.
func AggregateQuantities(items []OrderItem) ([]string, map[string]int64) {
	ids := make([]string, 0, len(items))
	qty := make(map[string]int64, len(items))
	for _, item := range items {
		if _, seen := qty[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		qty[item.ProductID] += item.Quantity
	}
	slices.Sort(ids)
	return ids, qty
}

func (o *Order) BelongsTo(userID string) bool {
	return o.UserID == userID
}
