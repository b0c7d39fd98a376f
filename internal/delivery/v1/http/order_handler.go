package http

import (
	"net/http"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	orderUsecase  usecase.OrderUC
	limitsUsecase usecase.LimitsUC
	logger        logger.Logger
}

func NewOrderHandler(orderUsecase usecase.OrderUC, limitsUsecase usecase.LimitsUC, logger logger.Logger) *OrderHandler {
	return &OrderHandler{orderUsecase: orderUsecase, limitsUsecase: limitsUsecase, logger: logger}
}

// createOrder
//
//	@Summary		Оформление заказа
//	@Description	Резервирует остатки и создаёт заказ в статусе pending. Списывает единицу квоты orders.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			X-User-ID	header		string				true	"Идентификатор пользователя"
//	@Param			request		body		createOrderRequest	true	"Состав заказа"
//	@Success		201			{object}	orderResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		403			{object}	ErrorResponse	"Квота исчерпана"
//	@Failure		404			{object}	ErrorResponse	"Товар не найден"
//	@Failure		409			{object}	ErrorResponse	"Недостаточно товара"
//	@Router			/orders [post]
func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	if !requireQuota(w, r, h.limitsUsecase, userID, domain.LimitOrders) {
		return
	}

	order, err := h.orderUsecase.CreateOrder(r.Context(), req.toUsecase(userID))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, newOrderResponse(order))
}

// getUserOrders
//
//	@Summary	Заказы пользователя
//	@Tags		orders
//	@Produce	json
//	@Param		X-User-ID	header		string	true	"Идентификатор пользователя"
//	@Param		limit		query		int		false	"Размер страницы"
//	@Param		offset		query		int		false	"Смещение"
//	@Success	200			{object}	ordersPageResponse
//	@Router		/orders [get]
func (h *OrderHandler) getUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	limit, offset, err := pageParams(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	page, err := h.orderUsecase.GetUserOrders(r.Context(), usecase.NewListReq(userID, limit, offset))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newOrdersPageResponse(page))
}

// getOrder
//
//	@Summary	Заказ пользователя
//	@Tags		orders
//	@Produce	json
//	@Param		X-User-ID	header		string	true	"Идентификатор пользователя"
//	@Param		orderID		path		string	true	"Идентификатор заказа"
//	@Success	200			{object}	orderResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/orders/{orderID} [get]
func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	order, err := h.orderUsecase.GetUserOrder(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newOrderResponse(order))
}

// updateOrderStatus
//
//	@Summary		Смена статуса заказа
//	@Description	Переход pending→cancelled возвращает остатки на склад.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			X-User-ID	header		string						true	"Идентификатор пользователя"
//	@Param			orderID		path		string						true	"Идентификатор заказа"
//	@Param			request		body		updateOrderStatusRequest	true	"Новый статус"
//	@Success		200			{object}	orderResponse
//	@Failure		400			{object}	ErrorResponse	"Недопустимый переход"
//	@Failure		404			{object}	ErrorResponse
//	@Router			/orders/{orderID}/status [patch]
func (h *OrderHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	order, err := h.orderUsecase.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newOrderResponse(order))
}

// cancelOrder
//
//	@Summary	Отмена заказа владельцем
//	@Tags		orders
//	@Produce	json
//	@Param		X-User-ID	header		string	true	"Идентификатор пользователя"
//	@Param		orderID		path		string	true	"Идентификатор заказа"
//	@Success	200			{object}	cancelOrderResponse
//	@Failure	403			{object}	ErrorResponse	"Заказ уже не в статусе pending"
//	@Failure	404			{object}	ErrorResponse
//	@Router		/orders/{orderID}/cancel [post]
func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	res, err := h.orderUsecase.CancelOrder(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, cancelOrderResponse{
		Order:          newOrderResponse(res.Order),
		RestockSkipped: res.RestockSkipped,
	})
}

func pageParams(r *http.Request) (int, int, error) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
