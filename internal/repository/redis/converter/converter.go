package converter

import "github.com/DRSN-tech/order-backend/internal/usecase"

// ProductInfoConverter преобразует карточку товара между usecase и моделью Redis.
type ProductInfoConverter interface {
	ToRedisModel(entity *usecase.ProductInfo) *ProductInfoRedisModel
	ToUseCase(model *ProductInfoRedisModel) *usecase.ProductInfo
}

type ProductInfoConverterImpl struct{}

func NewProductInfoConverterImpl() *ProductInfoConverterImpl { return &ProductInfoConverterImpl{} }

func (ProductInfoConverterImpl) ToRedisModel(entity *usecase.ProductInfo) *ProductInfoRedisModel {
	if entity == nil {
		return nil
	}
	return &ProductInfoRedisModel{
		ID:       entity.ID,
		OwnerID:  entity.OwnerID,
		Name:     entity.Name,
		Category: entity.Category,
		Price:    entity.Price,
		Stock:    entity.Stock,
		Status:   entity.Status,
	}
}

func (ProductInfoConverterImpl) ToUseCase(model *ProductInfoRedisModel) *usecase.ProductInfo {
	if model == nil {
		return nil
	}
	return &usecase.ProductInfo{
		ID:       model.ID,
		OwnerID:  model.OwnerID,
		Name:     model.Name,
		Category: model.Category,
		Price:    model.Price,
		Stock:    model.Stock,
		Status:   model.Status,
	}
}
