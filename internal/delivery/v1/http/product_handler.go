package http

import (
	"net/http"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	productUsecase usecase.ProductUC
	limitsUsecase  usecase.LimitsUC
	logger         logger.Logger
}

func NewProductHandler(productUsecase usecase.ProductUC, limitsUsecase usecase.LimitsUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{productUsecase: productUsecase, limitsUsecase: limitsUsecase, logger: logger}
}

// createProduct
//
//	@Summary		Добавление товара
//	@Description	Создаёт товар в каталоге владельца. Списывает единицу квоты products.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			X-User-ID	header		string					true	"Идентификатор пользователя"
//	@Param			request		body		createProductRequest	true	"Товар"
//	@Success		201			{object}	productResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		403			{object}	ErrorResponse	"Квота исчерпана"
//	@Router			/products [post]
func (p *ProductHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	price, err := parsePriceToCents(req.Price)
	if err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	if !requireQuota(w, r, p.limitsUsecase, userID, domain.LimitProducts) {
		return
	}

	product, err := p.productUsecase.CreateProduct(r.Context(), &usecase.CreateProductReq{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Category:    req.Category,
		Stock:       req.Stock,
		Status:      req.Status,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, newProductResponse(product))
}

// getUserProducts
//
//	@Summary	Товары владельца
//	@Tags		products
//	@Produce	json
//	@Param		X-User-ID	header		string	true	"Идентификатор пользователя"
//	@Param		limit		query		int		false	"Размер страницы"
//	@Param		offset		query		int		false	"Смещение"
//	@Success	200			{object}	productsPageResponse
//	@Router		/products [get]
func (p *ProductHandler) getUserProducts(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	limit, offset, err := pageParams(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	page, err := p.productUsecase.GetUserProducts(r.Context(), usecase.NewListReq(userID, limit, offset))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newProductsPageResponse(page))
}

// getProduct
//
//	@Summary	Товар по идентификатору
//	@Tags		products
//	@Produce	json
//	@Param		X-User-ID	header		string	true	"Идентификатор пользователя"
//	@Param		productID	path		string	true	"Идентификатор товара"
//	@Success	200			{object}	productResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/products/{productID} [get]
func (p *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := p.productUsecase.GetProductByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newProductResponse(product))
}

// updateProduct
//
//	@Summary	Частичное обновление товара владельцем
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		X-User-ID	header		string					true	"Идентификатор пользователя"
//	@Param		productID	path		string					true	"Идентификатор товара"
//	@Param		request		body		updateProductRequest	true	"Изменяемые поля"
//	@Success	200			{object}	productResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/products/{productID} [patch]
func (p *ProductHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req updateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	ucReq := &usecase.UpdateProductReq{
		ID:          chi.URLParam(r, "productID"),
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Stock:       req.Stock,
		Status:      req.Status,
	}
	if req.Price != nil {
		price, err := parsePriceToCents(*req.Price)
		if err != nil {
			WriteError(w, err)
			return
		}
		ucReq.Price = &price
	}

	product, err := p.productUsecase.UpdateProduct(r.Context(), ucReq)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newProductResponse(product))
}

// deleteProduct
//
//	@Summary	Удаление товара владельцем
//	@Tags		products
//	@Param		X-User-ID	header	string	true	"Идентификатор пользователя"
//	@Param		productID	path	string	true	"Идентификатор товара"
//	@Success	204
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{productID} [delete]
func (p *ProductHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	if err := p.productUsecase.DeleteProduct(r.Context(), userID, chi.URLParam(r, "productID")); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// restockProduct
//
//	@Summary	Пополнение остатка
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		X-User-ID	header		string			true	"Идентификатор пользователя"
//	@Param		productID	path		string			true	"Идентификатор товара"
//	@Param		request		body		restockRequest	true	"Количество"
//	@Success	200			{object}	productResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/products/{productID}/restock [post]
func (p *ProductHandler) restockProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req restockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	product, err := p.productUsecase.RestockProduct(r.Context(), userID, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newProductResponse(product))
}
