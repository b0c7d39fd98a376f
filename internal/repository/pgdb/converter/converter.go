package converter

import (
	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
)

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
type ProductConverter interface {
	ToModel(entity *domain.Product) *ProductModel
	ToEntity(model *ProductModel) *domain.Product
}

// OrderConverter преобразует заказ вместе со строками.
type OrderConverter interface {
	ToModel(entity *domain.Order) *OrderModel
	ToEntity(model *OrderModel) *domain.Order
}

// UserLimitsConverter раскладывает счётчики по колонкам и обратно.
type UserLimitsConverter interface {
	ToModel(entity *domain.UserLimits) *UserLimitsModel
	ToEntity(model *UserLimitsModel) *domain.UserLimits
}

// OutboxEventConverter преобразует сущности OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

type ProductConverterImpl struct{}

func NewProductConverterImpl() *ProductConverterImpl { return &ProductConverterImpl{} }

func (ProductConverterImpl) ToModel(entity *domain.Product) *ProductModel {
	if entity == nil {
		return nil
	}
	return &ProductModel{
		ID:          entity.ID,
		OwnerID:     entity.OwnerID,
		Name:        entity.Name,
		Description: entity.Description,
		Price:       entity.Price,
		Category:    string(entity.Category),
		Stock:       entity.Stock,
		Status:      string(entity.Status),
		CreatedAt:   entity.CreatedAt,
		UpdatedAt:   entity.UpdatedAt,
	}
}

func (ProductConverterImpl) ToEntity(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	return &domain.Product{
		ID:          model.ID,
		OwnerID:     model.OwnerID,
		Name:        model.Name,
		Description: model.Description,
		Price:       model.Price,
		Category:    domain.Category(model.Category),
		Stock:       model.Stock,
		Status:      domain.ProductStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

type OrderConverterImpl struct{}

func NewOrderConverterImpl() *OrderConverterImpl { return &OrderConverterImpl{} }

func (OrderConverterImpl) ToModel(entity *domain.Order) *OrderModel {
	if entity == nil {
		return nil
	}
	items := make([]OrderItemModel, len(entity.Items))
	for i, item := range entity.Items {
		items[i] = OrderItemModel{
			OrderID:   entity.ID,
			LineNo:    i + 1,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return &OrderModel{
		ID:              entity.ID,
		UserID:          entity.UserID,
		TotalAmount:     entity.TotalAmount,
		ShippingAddress: entity.ShippingAddress,
		Status:          string(entity.Status),
		CreatedAt:       entity.CreatedAt,
		UpdatedAt:       entity.UpdatedAt,
		Items:           items,
	}
}

func (OrderConverterImpl) ToEntity(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	items := make([]domain.OrderItem, len(model.Items))
	for i, item := range model.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return &domain.Order{
		ID:              model.ID,
		UserID:          model.UserID,
		Items:           items,
		TotalAmount:     model.TotalAmount,
		ShippingAddress: model.ShippingAddress,
		Status:          domain.OrderStatus(model.Status),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

type UserLimitsConverterImpl struct{}

func NewUserLimitsConverterImpl() *UserLimitsConverterImpl { return &UserLimitsConverterImpl{} }

func (UserLimitsConverterImpl) ToModel(entity *domain.UserLimits) *UserLimitsModel {
	if entity == nil {
		return nil
	}
	return &UserLimitsModel{
		UserID:          entity.UserID,
		Plan:            string(entity.Plan),
		ProductsMax:     entity.Products.Max,
		ProductsMin:     entity.Products.Min,
		ProductsCurrent: entity.Products.Current,
		OrdersMax:       entity.Orders.Max,
		OrdersMin:       entity.Orders.Min,
		OrdersCurrent:   entity.Orders.Current,
		APICallsMax:     entity.APICalls.Max,
		APICallsMin:     entity.APICalls.Min,
		APICallsCurrent: entity.APICalls.Current,
		ResetAt:         entity.ResetAt,
		UpdatedAt:       entity.UpdatedAt,
	}
}

func (UserLimitsConverterImpl) ToEntity(model *UserLimitsModel) *domain.UserLimits {
	if model == nil {
		return nil
	}
	return &domain.UserLimits{
		UserID:    model.UserID,
		Plan:      domain.Plan(model.Plan),
		Products:  domain.Limit{Max: model.ProductsMax, Min: model.ProductsMin, Current: model.ProductsCurrent},
		Orders:    domain.Limit{Max: model.OrdersMax, Min: model.OrdersMin, Current: model.OrdersCurrent},
		APICalls:  domain.Limit{Max: model.APICallsMax, Min: model.APICallsMin, Current: model.APICallsCurrent},
		ResetAt:   model.ResetAt,
		UpdatedAt: model.UpdatedAt,
	}
}

type OutboxEventConverterImpl struct{}

func NewOutboxEventConverterImpl() *OutboxEventConverterImpl { return &OutboxEventConverterImpl{} }

func (OutboxEventConverterImpl) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	if entity == nil {
		return nil
	}
	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   string(entity.EventType),
		AggregateID: entity.AggregateID,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		CreatedAt:   entity.CreatedAt,
		ProcessedAt: entity.ProcessedAt,
	}
}

func (OutboxEventConverterImpl) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	if model == nil {
		return nil
	}
	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   usecase.OutboxEventType(model.EventType),
		AggregateID: model.AggregateID,
		Payload:     model.Payload,
		Status:      usecase.OutboxStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c OutboxEventConverterImpl) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	result := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		result = append(result, c.ToEntity(m))
	}
	return result
}
