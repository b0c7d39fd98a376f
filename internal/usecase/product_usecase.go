package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	minProductNameLen        = 3
	minProductDescriptionLen = 10
)

// ProductUseCase реализует управление товарами владельцем и чтение каталога.
type ProductUseCase struct {
	txManager   TxManager
	productRepo ProductRepository
	ledger      StockLedger
	cacheRepo   CacheRepository
	logger      logger.Logger
	cfg         *cfg.OrderCfg
	now         func() time.Time
	newID       func() string
}

func NewProductUC(
	txManager TxManager,
	productRepo ProductRepository,
	ledger StockLedger,
	cacheRepo CacheRepository,
	logger logger.Logger,
	cfg *cfg.OrderCfg,
) *ProductUseCase {
	return &ProductUseCase{
		txManager:   txManager,
		productRepo: productRepo,
		ledger:      ledger,
		cacheRepo:   cacheRepo,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// CreateProduct добавляет товар в каталог владельца.
func (p *ProductUseCase) CreateProduct(ctx context.Context, req *CreateProductReq) (*domain.Product, error) {
	const op = "ProductUseCase.CreateProduct"

	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, p.fail(op, e.NewValidationError("user_id", "is required"))
	}

	status := domain.ProductStatus(strings.TrimSpace(req.Status))
	product := domain.NewProduct(
		p.newID(),
		req.OwnerID,
		strings.TrimSpace(req.Name),
		strings.TrimSpace(req.Description),
		req.Price,
		domain.Category(strings.ToLower(strings.TrimSpace(req.Category))),
		req.Stock,
		status,
		p.now(),
	)

	if err := validateProduct(product); err != nil {
		return nil, p.fail(op, err)
	}

	if err := p.productRepo.Create(ctx, product); err != nil {
		return nil, p.fail(op, err)
	}

	p.logger.Infof("product created: product_id=%s owner_id=%s", product.ID, product.OwnerID)
	return product, nil
}

// GetProductByID возвращает товар со всеми полями.
func (p *ProductUseCase) GetProductByID(ctx context.Context, productID string) (*domain.Product, error) {
	const op = "ProductUseCase.GetProductByID"

	if strings.TrimSpace(productID) == "" {
		return nil, p.fail(op, e.NewValidationError("product_id", "is required"))
	}

	product, err := p.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, p.fail(op, e.NewNotFoundError("product", productID))
		}
		return nil, p.fail(op, err)
	}

	return product, nil
}

// GetProductsInfo возвращает информацию о продуктах по их идентификаторам.
// Сначала читается кэш, промахи добираются из БД и кэшируются в фоне.
func (p *ProductUseCase) GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	const op = "ProductUseCase.GetProductsInfo"

	// Валидация
	if len(req.IDs) == 0 {
		return nil, p.fail(op, e.NewValidationError("ids", "at least one product id is required"))
	}

	// Поиск продуктов в кэше
	var (
		cacheProductsMap map[string]ProductInfo
		nonCacheable     []string
		err              error
	)
	if p.cacheRepo != nil {
		cacheProductsMap, err = p.cacheRepo.GetProducts(ctx, req.IDs)
		if err != nil {
			p.logger.Warnf("cache read failed, falling back to db: %v", e.Wrap(op, err))
			cacheProductsMap = nil
		}
	}
	for _, id := range req.IDs {
		if _, ok := cacheProductsMap[id]; !ok {
			nonCacheable = append(nonCacheable, id)
		}
	}

	// Версии читаются до БД: заполнение, опоздавшее за инвалидацией, отбрасывается
	var versions map[string]int64
	if p.cacheRepo != nil && len(nonCacheable) > 0 {
		versions, err = p.cacheRepo.Versions(ctx, nonCacheable)
		if err != nil {
			p.logger.Warnf("cache versions read failed, skipping fill: %v", e.Wrap(op, err))
			versions = nil
		}
	}

	// Получение продуктов из БД
	var productsInfoFromDB []ProductInfo
	if len(nonCacheable) > 0 {
		productsInfoFromDB, err = p.productRepo.GetProductsInfo(ctx, nonCacheable)
		if err != nil {
			return nil, p.fail(op, err)
		}

		if versions != nil && len(productsInfoFromDB) > 0 {
			toCache := make([]ProductInfo, len(productsInfoFromDB))
			copy(toCache, productsInfoFromDB)

			// Фоновое добавление продуктов в кэш
			go func() {
				bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				if err := p.cacheRepo.SetProducts(bgCtx, toCache, versions); err != nil {
					p.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
				}
			}()
		}
	}

	dbProductsMap := make(map[string]ProductInfo, len(productsInfoFromDB))
	for _, productInfo := range productsInfoFromDB {
		dbProductsMap[productInfo.ID] = productInfo
	}

	// Формирование результата
	result := make([]ProductInfo, 0, len(req.IDs))
	notFoundProducts := make([]string, 0)
	for _, id := range req.IDs {
		if pr, ok := cacheProductsMap[id]; ok {
			result = append(result, pr)
		} else if pr, ok := dbProductsMap[id]; ok {
			result = append(result, pr)
		} else {
			notFoundProducts = append(notFoundProducts, id)
		}
	}

	return NewGetProductsRes(result, notFoundProducts), nil
}

// GetUserProducts возвращает товары владельца, новые первыми.
func (p *ProductUseCase) GetUserProducts(ctx context.Context, req *ListReq) (*ProductsPage, error) {
	const op = "ProductUseCase.GetUserProducts"

	if strings.TrimSpace(req.UserID) == "" {
		return nil, p.fail(op, e.NewValidationError("user_id", "is required"))
	}

	limit, offset := NormalizePage(req.Limit, req.Offset, p.cfg.DefaultPageSize, p.cfg.MaxPageSize)

	products, total, err := p.productRepo.ListByOwner(ctx, req.UserID, limit, offset)
	if err != nil {
		return nil, p.fail(op, err)
	}

	return &ProductsPage{
		Items:   products,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}, nil
}

// UpdateProduct частично обновляет товар. Чужой товар выглядит как отсутствующий.
// Строка товара заблокирована до конца транзакции, остаток пишется отдельно и только если он передан.
func (p *ProductUseCase) UpdateProduct(ctx context.Context, req *UpdateProductReq) (*domain.Product, error) {
	const op = "ProductUseCase.UpdateProduct"

	if strings.TrimSpace(req.ID) == "" {
		return nil, p.fail(op, e.NewValidationError("product_id", "is required"))
	}

	var product *domain.Product
	err := p.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		product, err = p.loadOwned(ctx, req.OwnerID, req.ID, true)
		if err != nil {
			return err
		}

		applyProductPatch(product, req)
		product.UpdatedAt = p.now()

		if err := validateProduct(product); err != nil {
			return err
		}

		if err := p.productRepo.Update(ctx, product); err != nil {
			if errors.Is(err, e.ErrRecordNotFound) {
				return e.NewNotFoundError("product", req.ID)
			}
			return err
		}

		if req.Stock == nil {
			return nil
		}
		ok, err := p.ledger.SetStock(ctx, req.ID, *req.Stock)
		if err != nil {
			return err
		}
		if !ok {
			return e.NewNotFoundError("product", req.ID)
		}
		return nil
	})
	if err != nil {
		return nil, p.fail(op, err)
	}

	p.invalidate(ctx, product.ID)
	return product, nil
}

// DeleteProduct удаляет товар владельца. Строки существующих заказов не затрагиваются.
func (p *ProductUseCase) DeleteProduct(ctx context.Context, ownerID, productID string) error {
	const op = "ProductUseCase.DeleteProduct"

	if strings.TrimSpace(productID) == "" {
		return p.fail(op, e.NewValidationError("product_id", "is required"))
	}

	if err := p.productRepo.Delete(ctx, productID, ownerID); err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return p.fail(op, e.NewNotFoundError("product", productID))
		}
		return p.fail(op, err)
	}

	p.invalidate(ctx, productID)
	p.logger.Infof("product deleted: product_id=%s owner_id=%s", productID, ownerID)
	return nil
}

// RestockProduct пополняет остаток товара владельцем.
func (p *ProductUseCase) RestockProduct(ctx context.Context, ownerID, productID string, qty int64) (*domain.Product, error) {
	const op = "ProductUseCase.RestockProduct"

	if qty < 1 {
		return nil, p.fail(op, e.NewValidationError("quantity", "must be at least 1"))
	}

	var product *domain.Product
	err := p.txManager.Do(ctx, func(ctx context.Context) error {
		if _, err := p.loadOwned(ctx, ownerID, productID, false); err != nil {
			return err
		}

		ok, err := p.ledger.Increment(ctx, productID, qty)
		if err != nil {
			return err
		}
		if !ok {
			return e.NewNotFoundError("product", productID)
		}

		product, err = p.productRepo.GetByID(ctx, productID)
		return err
	})
	if err != nil {
		return nil, p.fail(op, err)
	}

	p.invalidate(ctx, productID)
	return product, nil
}

// DecrementStock — внешняя точка условного списания остатка.
func (p *ProductUseCase) DecrementStock(ctx context.Context, productID string, qty int64) (bool, error) {
	const op = "ProductUseCase.DecrementStock"

	if strings.TrimSpace(productID) == "" {
		return false, p.fail(op, e.NewValidationError("product_id", "is required"))
	}
	if qty < 1 {
		return false, p.fail(op, e.NewValidationError("quantity", "must be at least 1"))
	}

	ok, err := p.ledger.TryDecrement(ctx, productID, qty)
	if err != nil {
		return false, p.fail(op, err)
	}

	if ok {
		p.invalidate(ctx, productID)
	}
	return ok, nil
}

func (p *ProductUseCase) loadOwned(ctx context.Context, ownerID, productID string, forUpdate bool) (*domain.Product, error) {
	get := p.productRepo.GetByID
	if forUpdate {
		get = p.productRepo.GetForUpdate
	}

	product, err := get(ctx, productID)
	if err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, e.NewNotFoundError("product", productID)
		}
		return nil, err
	}
	if product.OwnerID != ownerID {
		return nil, e.NewNotFoundError("product", productID)
	}
	return product, nil
}

func (p *ProductUseCase) invalidate(ctx context.Context, ids ...string) {
	if p.cacheRepo == nil {
		return
	}
	if err := p.cacheRepo.DeleteProducts(ctx, ids); err != nil {
		p.logger.Warnf("Failed to delete products from cache: %v", err)
	}
}

func (p *ProductUseCase) fail(op string, err error) error {
	return failWith(p.logger, op, err)
}

func applyProductPatch(product *domain.Product, req *UpdateProductReq) {
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Category != nil {
		product.Category = domain.Category(strings.ToLower(strings.TrimSpace(*req.Category)))
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Status != nil {
		product.Status = domain.ProductStatus(strings.TrimSpace(*req.Status))
	}
}

func validateProduct(p *domain.Product) error {
	if len([]rune(p.Name)) < minProductNameLen {
		return e.NewValidationError("name", "must be at least 3 characters")
	}
	if len([]rune(p.Description)) < minProductDescriptionLen {
		return e.NewValidationError("description", "must be at least 10 characters")
	}
	if p.Price <= 0 {
		return e.NewValidationError("price", "must be positive")
	}
	if !p.Category.IsValid() {
		return e.NewValidationError("category", "unknown category "+string(p.Category))
	}
	if p.Stock < 0 {
		return e.NewValidationError("stock", "cannot be negative")
	}
	if !p.Status.IsValid() {
		return e.NewValidationError("status", "unknown status "+string(p.Status))
	}
	return nil
}
