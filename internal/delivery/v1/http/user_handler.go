package http

import (
	"net/http"

	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
)

type UserHandler struct {
	limitsUsecase usecase.LimitsUC
	logger        logger.Logger
}

func NewUserHandler(limitsUsecase usecase.LimitsUC, logger logger.Logger) *UserHandler {
	return &UserHandler{limitsUsecase: limitsUsecase, logger: logger}
}

// registerUser
//
//	@Summary		Регистрация счётчиков пользователя
//	@Description	Идемпотентно. Пустой план означает free.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			X-User-ID	header		string				true	"Идентификатор пользователя"
//	@Param			request		body		registerUserRequest	false	"План"
//	@Success		201			{object}	limitsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Router			/users/register [post]
func (u *UserHandler) registerUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req registerUserRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			u.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
			WriteError(w, err)
			return
		}
	}

	limits, err := u.limitsUsecase.RegisterUser(r.Context(), userID, req.Plan)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, newLimitsResponse(limits))
}

// getLimits
//
//	@Summary	Текущие квоты пользователя
//	@Tags		users
//	@Produce	json
//	@Param		X-User-ID	header		string	true	"Идентификатор пользователя"
//	@Success	200			{object}	limitsResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/users/limits [get]
func (u *UserHandler) getLimits(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	limits, err := u.limitsUsecase.GetLimits(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newLimitsResponse(limits))
}

// changePlan
//
//	@Summary		Смена плана
//	@Description	Новые значения квот вступают в силу при следующем месячном сбросе.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			X-User-ID	header		string				true	"Идентификатор пользователя"
//	@Param			request		body		changePlanRequest	true	"План"
//	@Success		200			{object}	limitsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/users/plan [patch]
func (u *UserHandler) changePlan(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())

	var req changePlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		u.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	limits, err := u.limitsUsecase.ChangePlan(r.Context(), userID, req.Plan)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newLimitsResponse(limits))
}
