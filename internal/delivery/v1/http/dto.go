package http

import (
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
)

// REQUESTS

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price" example:"599.99"`
	Category    string `json:"category"`
	Stock       int64  `json:"stock"`
	Status      string `json:"status,omitempty"`
}

type updateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty" example:"599.99"`
	Category    *string `json:"category,omitempty"`
	Stock       *int64  `json:"stock,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type restockRequest struct {
	Quantity int64 `json:"quantity"`
}

type registerUserRequest struct {
	Plan string `json:"plan,omitempty"`
}

type changePlanRequest struct {
	Plan string `json:"plan"`
}

// RESPONSES

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Items           []orderItemResponse `json:"items"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type ordersPageResponse struct {
	Orders     []orderResponse `json:"orders"`
	Pagination pagination      `json:"pagination"`
}

type cancelOrderResponse struct {
	Order          orderResponse `json:"order"`
	RestockSkipped []string      `json:"restock_skipped,omitempty"`
}

type productResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	Stock       int64     `json:"stock"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type productsPageResponse struct {
	Products   []productResponse `json:"products"`
	Pagination pagination        `json:"pagination"`
}

type limitResponse struct {
	Max       int64 `json:"max"`
	Current   int64 `json:"current"`
	Unlimited bool  `json:"unlimited"`
}

type limitsResponse struct {
	UserID   string        `json:"user_id"`
	Plan     string        `json:"plan"`
	Products limitResponse `json:"products"`
	Orders   limitResponse `json:"orders"`
	APICalls limitResponse `json:"api_calls"`
	ResetAt  time.Time     `json:"reset_at"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// MAPPERS

func (r *createOrderRequest) toUsecase(userID string) *usecase.CreateOrderReq {
	items := make([]usecase.OrderItemReq, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, usecase.OrderItemReq{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return usecase.NewCreateOrderReq(userID, items, r.ShippingAddress)
}

func newOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     formatCents(it.Price),
		})
	}

	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		TotalAmount:     formatCents(o.TotalAmount),
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func newOrdersPageResponse(p *usecase.OrdersPage) ordersPageResponse {
	orders := make([]orderResponse, 0, len(p.Items))
	for i := range p.Items {
		orders = append(orders, newOrderResponse(&p.Items[i]))
	}
	return ordersPageResponse{
		Orders:     orders,
		Pagination: pagination{Total: p.Total, Limit: p.Limit, Offset: p.Offset, HasMore: p.HasMore},
	}
}

func newProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       formatCents(p.Price),
		Category:    string(p.Category),
		Stock:       p.Stock,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func newProductsPageResponse(p *usecase.ProductsPage) productsPageResponse {
	products := make([]productResponse, 0, len(p.Items))
	for i := range p.Items {
		products = append(products, newProductResponse(&p.Items[i]))
	}
	return productsPageResponse{
		Products:   products,
		Pagination: pagination{Total: p.Total, Limit: p.Limit, Offset: p.Offset, HasMore: p.HasMore},
	}
}

func newLimitResponse(l domain.Limit) limitResponse {
	return limitResponse{Max: l.Max, Current: l.Current, Unlimited: l.Unlimited()}
}

func newLimitsResponse(l *domain.UserLimits) limitsResponse {
	return limitsResponse{
		UserID:   l.UserID,
		Plan:     string(l.Plan),
		Products: newLimitResponse(l.Products),
		Orders:   newLimitResponse(l.Orders),
		APICalls: newLimitResponse(l.APICalls),
		ResetAt:  l.ResetAt,
	}
}
