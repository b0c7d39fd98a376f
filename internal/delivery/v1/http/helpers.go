package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// Коды ошибок в теле ответа.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeForbiddenState    = "FORBIDDEN_STATE"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeBadRequest        = "BAD_REQUEST"
	CodeInternal          = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type insufficientStockDetails struct {
	ProductID string `json:"product_id"`
	Available int64  `json:"available"`
	Requested int64  `json:"requested"`
}

func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет ошибку со статусом и телом ответа.
// Текст сбоев хранилища наружу не отдаётся.
func ToHTTPResponse(err error) (int, *ErrorResponse) {
	switch e.KindOf(err) {
	case e.KindValidation:
		return http.StatusBadRequest, NewErrorResponse(CodeValidation, err.Error())
	case e.KindNotFound:
		return http.StatusNotFound, NewErrorResponse(CodeNotFound, err.Error())
	case e.KindInsufficientStock:
		resp := NewErrorResponse(CodeInsufficientStock, err.Error())
		var stockErr *e.InsufficientStockError
		if errors.As(err, &stockErr) {
			resp.Details = insufficientStockDetails{
				ProductID: stockErr.ProductID,
				Available: stockErr.Available,
				Requested: stockErr.Requested,
			}
		}
		return http.StatusConflict, resp
	case e.KindIllegalTransition:
		return http.StatusBadRequest, NewErrorResponse(CodeIllegalTransition, err.Error())
	case e.KindForbiddenState:
		return http.StatusForbidden, NewErrorResponse(CodeForbiddenState, err.Error())
	case e.KindQuotaExceeded:
		return http.StatusForbidden, NewErrorResponse(CodeQuotaExceeded, err.Error())
	}

	switch {
	case errors.Is(err, e.ErrMissingUserID):
		return http.StatusUnauthorized, NewErrorResponse(CodeUnauthorized, e.ErrMissingUserID.Error())
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, NewErrorResponse(CodeBadRequest, err.Error())
	case errors.Is(err, e.ErrInvalidPrice), errors.Is(err, e.ErrPricePrecision):
		return http.StatusBadRequest, NewErrorResponse(CodeValidation, err.Error())
	default:
		return http.StatusInternalServerError, NewErrorResponse(CodeInternal, e.ErrInternalServerError.Error())
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, body := ToHTTPResponse(err)
	WriteSuccess(w, code, body)
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. Неизвестные поля считаются ошибкой.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return e.Wrap("invalid json body: "+err.Error(), e.ErrStatusBadRequest)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return e.Wrap("body must contain a single json object", e.ErrStatusBadRequest)
	}
	return nil
}

// queryInt читает неотрицательное целое из query-параметра.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, e.NewValidationError(key, "must be an integer")
	}
	return n, nil
}

// parsePriceToCents converts a string like "599.99" or "600" to int64 cents.
// Returns error if:
// - invalid format
// - more than 2 decimal places
// - negative value
// - exceeds reasonable limit (e.g. 10^9 rubles)
func parsePriceToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, e.ErrInvalidPrice
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, e.ErrInvalidPrice
	}

	// Reject negative
	if d.LessThan(decimal.Zero) {
		return 0, e.ErrInvalidPrice
	}

	// Enforce max value (1 billion in major units)
	maxPrice := decimal.NewFromInt(1_000_000_000)
	if d.GreaterThan(maxPrice) {
		return 0, e.ErrInvalidPrice
	}

	// Check decimal places
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return 0, e.ErrPricePrecision
	}

	// Convert to cents: multiply by 100 and round
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// formatCents converts int64 cents back to a "599.99" string.
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
