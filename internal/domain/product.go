package domain

import "time"

// ProductStatus — статус товара в каталоге.
type ProductStatus string

const (
	ProductActive     ProductStatus = "active"
	ProductDraft      ProductStatus = "draft"
	ProductArchived   ProductStatus = "archived"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductActive, ProductDraft, ProductArchived, ProductOutOfStock:
		return true
	}
	return false
}

// Product описывает товар. Остаток никогда не бывает отрицательным.
type Product struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Price       int64 // Цена хранится в копейках
	Category    Category
	Stock       int64
	Status      ProductStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProduct(
	id, ownerID, name, description string,
	price int64,
	category Category,
	stock int64,
	status ProductStatus,
	now time.Time,
) *Product {
	if status == "" {
		status = ProductActive
	}

	return &Product{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Price:       price,
		Category:    category,
		Stock:       stock,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Snapshot возвращает срез данных товара, нужный для оформления заказа.
func (p *Product) Snapshot() *ProductSnapshot {
	return &ProductSnapshot{
		ID:      p.ID,
		OwnerID: p.OwnerID,
		Name:    p.Name,
		Price:   p.Price,
		Stock:   p.Stock,
		Status:  p.Status,
	}
}

// ProductSnapshot — результат поиска по каталогу.
type ProductSnapshot struct {
	ID      string
	OwnerID string
	Name    string
	Price   int64
	Stock   int64
	Status  ProductStatus
}
