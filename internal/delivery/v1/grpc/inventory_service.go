package grpc

import (
	"context"

	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"google.golang.org/grpc"
)

const inventoryServiceName = "order.v1.InventoryService"

// Полные имена методов для клиентов.
const (
	GetProductsInfoMethod = "/" + inventoryServiceName + "/GetProductsInfo"
	DecrementStockMethod  = "/" + inventoryServiceName + "/DecrementStock"
)

type ProductsInfoRequest struct {
	IDs []string `json:"ids"`
}

type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Stock    int64  `json:"stock"`
	Status   string `json:"status"`
}

type ProductsInfoResponse struct {
	Products         []Product `json:"products"`
	ProductsNotFound []string  `json:"products_not_found"`
}

type DecrementStockRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type DecrementStockResponse struct {
	Decremented bool `json:"decremented"`
}

// InventoryServiceServer — сервис каталога для соседних сервисов.
type InventoryServiceServer interface {
	GetProductsInfo(ctx context.Context, req *ProductsInfoRequest) (*ProductsInfoResponse, error)
	DecrementStock(ctx context.Context, req *DecrementStockRequest) (*DecrementStockResponse, error)
}

type InventoryService struct {
	prUC   usecase.ProductUC
	logger logger.Logger
}

func NewInventoryService(prUC usecase.ProductUC, logger logger.Logger) *InventoryService {
	return &InventoryService{prUC: prUC, logger: logger}
}

func (g *InventoryService) GetProductsInfo(ctx context.Context, req *ProductsInfoRequest) (*ProductsInfoResponse, error) {
	const op = "grpc.GetProductsInfo"

	res, err := g.prUC.GetProductsInfo(ctx, usecase.NewGetProductsReq(req.IDs))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return &ProductsInfoResponse{
		Products:         toArrGRPCProduct(res.Products),
		ProductsNotFound: res.NotFoundProducts,
	}, nil
}

func (g *InventoryService) DecrementStock(ctx context.Context, req *DecrementStockRequest) (*DecrementStockResponse, error) {
	const op = "grpc.DecrementStock"

	ok, err := g.prUC.DecrementStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return &DecrementStockResponse{Decremented: ok}, nil
}

func toGRPCProduct(pr *usecase.ProductInfo) Product {
	return Product{
		ID:       pr.ID,
		Name:     pr.Name,
		Category: pr.Category,
		Price:    pr.Price,
		Stock:    pr.Stock,
		Status:   pr.Status,
	}
}

func toArrGRPCProduct(prs []usecase.ProductInfo) []Product {
	res := make([]Product, len(prs))
	for i := range prs {
		res[i] = toGRPCProduct(&prs[i])
	}

	return res
}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProductsInfo", Handler: getProductsInfoHandler},
		{MethodName: "DecrementStock", Handler: decrementStockHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func getProductsInfoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProductsInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).GetProductsInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetProductsInfoMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).GetProductsInfo(ctx, req.(*ProductsInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func decrementStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DecrementStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).DecrementStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DecrementStockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).DecrementStock(ctx, req.(*DecrementStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}
