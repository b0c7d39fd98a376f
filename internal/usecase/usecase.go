package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
)

type OrderUC interface {
	CreateOrder(ctx context.Context, req *CreateOrderReq) (*domain.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	GetUserOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)
	GetUserOrders(ctx context.Context, req *ListReq) (*OrdersPage, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (*CancelOrderRes, error)
}

type ProductUC interface {
	CreateProduct(ctx context.Context, req *CreateProductReq) (*domain.Product, error)
	GetProductByID(ctx context.Context, productID string) (*domain.Product, error)
	GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error)
	GetUserProducts(ctx context.Context, req *ListReq) (*ProductsPage, error)
	UpdateProduct(ctx context.Context, req *UpdateProductReq) (*domain.Product, error)
	DeleteProduct(ctx context.Context, ownerID, productID string) error
	RestockProduct(ctx context.Context, ownerID, productID string, qty int64) (*domain.Product, error)
	DecrementStock(ctx context.Context, productID string, qty int64) (bool, error)
}

type LimitsUC interface {
	RegisterUser(ctx context.Context, userID, plan string) (*domain.UserLimits, error)
	GetLimits(ctx context.Context, userID string) (*domain.UserLimits, error)
	DecrementLimit(ctx context.Context, userID string, limitType domain.LimitType) (bool, error)
	ResetMonthlyLimits(ctx context.Context, userID string) (*domain.UserLimits, error)
	RolloverMonth(ctx context.Context, userID string, seenResetAt time.Time) (*domain.UserLimits, bool, error)
	ChangePlan(ctx context.Context, userID, plan string) (*domain.UserLimits, error)
}
