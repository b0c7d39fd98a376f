package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/google/uuid"
)

const minShippingAddressLen = 10

// OrderUseCase оркестрирует создание, смену статуса и отмену заказов.
// Каждый сценарий выполняется целиком внутри одной транзакции.
type OrderUseCase struct {
	txManager  TxManager
	catalog    CatalogRepository
	ledger     StockLedger
	orderRepo  OrderRepository
	outboxRepo OutboxRepository
	cacheRepo  CacheRepository
	logger     logger.Logger
	cfg        *cfg.OrderCfg
	now        func() time.Time
	newID      func() string
}

func NewOrderUC(
	txManager TxManager,
	catalog CatalogRepository,
	ledger StockLedger,
	orderRepo OrderRepository,
	outboxRepo OutboxRepository,
	cacheRepo CacheRepository,
	logger logger.Logger,
	cfg *cfg.OrderCfg,
) *OrderUseCase {
	return &OrderUseCase{
		txManager:  txManager,
		catalog:    catalog,
		ledger:     ledger,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		cacheRepo:  cacheRepo,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// CreateOrder проверяет наличие, резервирует остатки, считает сумму и сохраняет заказ.
// При любой ошибке ни остатки, ни заказ не меняются.
func (o *OrderUseCase) CreateOrder(ctx context.Context, req *CreateOrderReq) (*domain.Order, error) {
	const op = "OrderUseCase.CreateOrder"

	address, err := o.validateCreateOrder(req)
	if err != nil {
		return nil, o.fail(op, err)
	}

	lines := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		lines[i] = domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	productIDs, requested := domain.AggregateQuantities(lines)

	var order *domain.Order
	err = o.txManager.Do(ctx, func(ctx context.Context) error {
		// Поиск товаров и проверка остатков
		snapshots := make(map[string]*domain.ProductSnapshot, len(productIDs))
		for _, id := range productIDs {
			snap, err := o.lookup(ctx, id)
			if err != nil {
				return err
			}
			if requested[id] > snap.Stock {
				return e.NewInsufficientStockError(id, snap.Name, snap.Stock, requested[id])
			}
			snapshots[id] = snap
		}

		// Фиксация цен и подсчёт суммы
		for i := range lines {
			snap := snapshots[lines[i].ProductID]
			lines[i].Name = snap.Name
			lines[i].Price = snap.Price
		}

		var err error
		order, err = domain.NewOrder(o.newID(), req.UserID, lines, address, o.now())
		if err != nil {
			return err
		}

		// Условное списание остатков
		for _, id := range productIDs {
			if err := o.reserve(ctx, id, snapshots[id].Name, requested[id]); err != nil {
				return err
			}
		}

		if err := o.orderRepo.Create(ctx, order); err != nil {
			return e.Wrap("create order", err)
		}

		return o.recordEvent(ctx, OrderCreated, order, "")
	})
	if err != nil {
		return nil, o.fail(op, err)
	}

	o.invalidateProducts(ctx, productIDs)
	o.logger.Infof("order created: order_id=%s user_id=%s total=%d items=%d",
		order.ID, order.UserID, order.TotalAmount, len(order.Items))

	return order, nil
}

// UpdateOrderStatus переводит заказ в новый статус по таблице переходов.
// Отмена из pending возвращает остатки так же, как CancelOrder.
func (o *OrderUseCase) UpdateOrderStatus(ctx context.Context, orderID, status string) (*domain.Order, error) {
	const op = "OrderUseCase.UpdateOrderStatus"

	if strings.TrimSpace(orderID) == "" {
		return nil, o.fail(op, e.NewValidationError("order_id", "is required"))
	}

	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, o.fail(op, err)
	}

	var (
		order   *domain.Order
		skipped []string
	)
	err = o.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = o.loadForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if err := domain.ValidateTransition(order.Status, next); err != nil {
			return err
		}

		if order.Status == domain.OrderPending && next == domain.OrderCancelled {
			skipped, err = o.restock(ctx, order)
			if err != nil {
				return err
			}
		}

		return o.transition(ctx, order, next)
	})
	if err != nil {
		return nil, o.fail(op, err)
	}

	if next == domain.OrderCancelled {
		ids, _ := order.Quantities()
		o.invalidateProducts(ctx, ids)
	}
	o.logRestockSkipped(order.ID, skipped)
	o.logger.Infof("order status updated: order_id=%s status=%s", order.ID, order.Status)

	return order, nil
}

// CancelOrder отменяет заказ пользователя в статусе pending и возвращает остатки.
func (o *OrderUseCase) CancelOrder(ctx context.Context, userID, orderID string) (*CancelOrderRes, error) {
	const op = "OrderUseCase.CancelOrder"

	if strings.TrimSpace(userID) == "" {
		return nil, o.fail(op, e.NewValidationError("user_id", "is required"))
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, o.fail(op, e.NewValidationError("order_id", "is required"))
	}

	var (
		order   *domain.Order
		skipped []string
	)
	err := o.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = o.loadForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.BelongsTo(userID) {
			return e.NewNotFoundError("order", orderID)
		}

		if order.Status != domain.OrderPending {
			return e.NewForbiddenStateError("cancel", string(order.Status))
		}

		skipped, err = o.restock(ctx, order)
		if err != nil {
			return err
		}

		return o.transition(ctx, order, domain.OrderCancelled)
	})
	if err != nil {
		return nil, o.fail(op, err)
	}

	ids, _ := order.Quantities()
	o.invalidateProducts(ctx, ids)
	o.logRestockSkipped(order.ID, skipped)
	o.logger.Infof("order cancelled: order_id=%s user_id=%s", order.ID, userID)

	return &CancelOrderRes{Order: order, RestockSkipped: skipped}, nil
}

// GetOrderByID возвращает заказ без проверки владельца.
func (o *OrderUseCase) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "OrderUseCase.GetOrderByID"

	if strings.TrimSpace(orderID) == "" {
		return nil, o.fail(op, e.NewValidationError("order_id", "is required"))
	}

	order, err := o.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, o.fail(op, e.NewNotFoundError("order", orderID))
		}
		return nil, o.fail(op, err)
	}

	return order, nil
}

// GetUserOrder возвращает заказ, только если он принадлежит пользователю.
func (o *OrderUseCase) GetUserOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := o.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.BelongsTo(userID) {
		return nil, e.NewNotFoundError("order", orderID)
	}
	return order, nil
}

// GetUserOrders возвращает заказы пользователя, новые первыми.
func (o *OrderUseCase) GetUserOrders(ctx context.Context, req *ListReq) (*OrdersPage, error) {
	const op = "OrderUseCase.GetUserOrders"

	if strings.TrimSpace(req.UserID) == "" {
		return nil, o.fail(op, e.NewValidationError("user_id", "is required"))
	}

	limit, offset := NormalizePage(req.Limit, req.Offset, o.cfg.DefaultPageSize, o.cfg.MaxPageSize)

	orders, total, err := o.orderRepo.ListByUser(ctx, req.UserID, limit, offset)
	if err != nil {
		return nil, o.fail(op, err)
	}

	return &OrdersPage{
		Items:   orders,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}, nil
}

func (o *OrderUseCase) validateCreateOrder(req *CreateOrderReq) (string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", e.NewValidationError("user_id", "is required")
	}
	if len(req.Items) == 0 {
		return "", e.NewValidationError("items", "order must contain at least one item")
	}
	if len(req.Items) > o.cfg.MaxItems {
		return "", e.NewValidationError("items", "too many items in order")
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return "", e.NewValidationError("items.product_id", "is required")
		}
		if item.Quantity < 1 {
			return "", e.NewValidationError("items.quantity", "must be at least 1")
		}
	}

	address := strings.TrimSpace(req.ShippingAddress)
	if len([]rune(address)) < minShippingAddressLen {
		return "", e.NewValidationError("shipping_address", "must be at least 10 characters")
	}

	return address, nil
}

// lookup читает снимок товара внутри текущей транзакции.
func (o *OrderUseCase) lookup(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	snap, err := o.catalog.GetSnapshot(ctx, productID)
	if err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, e.NewNotFoundError("product", productID)
		}
		return nil, e.Wrap("catalog lookup", err)
	}
	return snap, nil
}

// reserve списывает остаток. Если условие не выполнилось, остаток перечитывается для текста ошибки.
func (o *OrderUseCase) reserve(ctx context.Context, productID, name string, qty int64) error {
	ok, err := o.ledger.TryDecrement(ctx, productID, qty)
	if err != nil {
		return e.Wrap("decrement stock", err)
	}
	if ok {
		return nil
	}

	snap, err := o.lookup(ctx, productID)
	if err != nil {
		return err
	}
	return e.NewInsufficientStockError(productID, name, snap.Stock, qty)
}

// restock возвращает остатки по заказу. Удалённые товары пропускаются.
func (o *OrderUseCase) restock(ctx context.Context, order *domain.Order) ([]string, error) {
	ids, qty := order.Quantities()

	var skipped []string
	for _, id := range ids {
		ok, err := o.ledger.Increment(ctx, id, qty[id])
		if err != nil {
			return nil, e.Wrap("increment stock", err)
		}
		if !ok {
			skipped = append(skipped, id)
		}
	}

	return skipped, nil
}

func (o *OrderUseCase) loadForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := o.orderRepo.GetForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, e.NewNotFoundError("order", orderID)
		}
		return nil, e.Wrap("load order", err)
	}
	return order, nil
}

// transition сохраняет новый статус с проверкой прежнего и пишет событие.
func (o *OrderUseCase) transition(ctx context.Context, order *domain.Order, next domain.OrderStatus) error {
	prev := order.Status
	now := o.now()

	ok, err := o.orderRepo.UpdateStatus(ctx, order.ID, prev, next, now)
	if err != nil {
		return e.Wrap("update status", err)
	}
	if !ok {
		return e.NewIllegalTransitionError(string(prev), string(next))
	}

	order.Status = next
	order.UpdatedAt = now

	eventType := OrderStatusChanged
	if next == domain.OrderCancelled {
		eventType = OrderCancelled
	}
	return o.recordEvent(ctx, eventType, order, prev)
}

func (o *OrderUseCase) recordEvent(ctx context.Context, eventType OutboxEventType, order *domain.Order, prev domain.OrderStatus) error {
	eventID := o.newID()

	items := make([]OrderEventItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderEventItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price}
	}

	payload, err := json.Marshal(OrderEventPayload{
		EventID:        eventID,
		EventType:      eventType,
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: prev,
		TotalAmount:    order.TotalAmount,
		Items:          items,
		OccurredAt:     order.UpdatedAt,
	})
	if err != nil {
		return e.Wrap("marshal event", err)
	}

	_, err = o.outboxRepo.Create(ctx, &OutboxEvent{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: order.ID,
		Payload:     payload,
		Status:      Pending,
		CreatedAt:   order.UpdatedAt,
	})
	if err != nil {
		return e.Wrap("record event", err)
	}

	return nil
}

// invalidateProducts удаляет из кэша устаревшие остатки. Ошибка кэша не влияет на результат.
func (o *OrderUseCase) invalidateProducts(ctx context.Context, ids []string) {
	if o.cacheRepo == nil || len(ids) == 0 {
		return
	}
	if err := o.cacheRepo.DeleteProducts(ctx, ids); err != nil {
		o.logger.Warnf("Failed to delete products from cache: %v", err)
	}
}

func (o *OrderUseCase) logRestockSkipped(orderID string, skipped []string) {
	if len(skipped) == 0 {
		return
	}
	o.logger.Warnf("order %s cancelled, stock not restored for deleted products: %s",
		orderID, strings.Join(skipped, ","))
}

// fail логирует ошибку по её виду: бизнес-отказы идут в warn, сбои хранилища в error.
func (o *OrderUseCase) fail(op string, err error) error {
	return failWith(o.logger, op, err)
}

func failWith(log logger.Logger, op string, err error) error {
	if e.IsBusiness(err) {
		log.Warnf("%s: %v", op, err)
		return err
	}

	storeErr := e.NewStoreError(op, err)
	log.Errorf(storeErr, "%s", op)
	return storeErr
}

// NormalizePage приводит limit/offset к допустимым границам.
func NormalizePage(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
