package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/internal/repository/memory"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	seller = "seller-1"
	buyer  = "buyer-1"
)

type RouterSuite struct {
	suite.Suite

	srv      *httptest.Server
	limitsUC *usecase.LimitsUseCase
	healthy  error
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	store := memory.NewStore()
	tx := memory.NewTxManager(store)
	products := memory.NewProductRepo(store)
	orders := memory.NewOrderRepo(store)
	outbox := memory.NewOutboxEventRepo(store)
	log := logger.NewNopLogger()
	orderCfg := cfg.DefaultOrderCfg()

	orderUC := usecase.NewOrderUC(tx, products, products, orders, outbox, nil, log, orderCfg)
	productUC := usecase.NewProductUC(tx, products, products, nil, log, orderCfg)
	s.limitsUC = usecase.NewLimitsUC(memory.NewUserLimitsRepo(store), log)
	s.healthy = nil

	mux := chi.NewRouter()
	NewRouter(mux, log, 5*time.Second).Init(orderUC, productUC, s.limitsUC, func(context.Context) error {
		return s.healthy
	})
	s.srv = httptest.NewServer(mux)
}

func (s *RouterSuite) TearDownTest() {
	s.srv.Close()
}

func (s *RouterSuite) do(method, path, userID string, body interface{}) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	s.Require().NoError(err)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, raw
}

func (s *RouterSuite) decode(raw []byte, dst interface{}) {
	s.Require().NoError(json.Unmarshal(raw, dst), string(raw))
}

func (s *RouterSuite) register(userID string) {
	code, raw := s.do(http.MethodPost, "/api/v1/users/register", userID, nil)
	s.Require().Equal(http.StatusCreated, code, string(raw))
}

func (s *RouterSuite) createProduct(price string, stock int64) productResponse {
	code, raw := s.do(http.MethodPost, "/api/v1/products/", seller, createProductRequest{
		Name:        "Kettle",
		Description: "Electric kettle 1.7L",
		Price:       price,
		Category:    "home",
		Stock:       stock,
	})
	s.Require().Equal(http.StatusCreated, code, string(raw))

	var p productResponse
	s.decode(raw, &p)
	return p
}

func (s *RouterSuite) createOrder(productID string, qty int64) (int, []byte) {
	return s.do(http.MethodPost, "/api/v1/orders/", buyer, createOrderRequest{
		Items:           []orderItemRequest{{ProductID: productID, Quantity: qty}},
		ShippingAddress: "Lenina st. 1, Moscow",
	})
}

func (s *RouterSuite) errorCode(raw []byte) ErrorResponse {
	var resp ErrorResponse
	s.decode(raw, &resp)
	return resp
}

func (s *RouterSuite) TestMissingUserID() {
	code, raw := s.do(http.MethodGet, "/api/v1/orders/", "", nil)
	s.Equal(http.StatusUnauthorized, code)
	s.Equal(CodeUnauthorized, s.errorCode(raw).Code)
}

func (s *RouterSuite) TestHealth() {
	code, raw := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"status":"ok"}`, string(raw))

	s.healthy = errors.New("db down")
	code, raw = s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusServiceUnavailable, code)
	s.JSONEq(`{"status":"unavailable"}`, string(raw))
}

func (s *RouterSuite) TestOrderLifecycle() {
	s.register(seller)
	s.register(buyer)

	product := s.createProduct("12.50", 5)
	s.Equal("12.50", product.Price)
	s.Equal(seller, product.OwnerID)

	code, raw := s.createOrder(product.ID, 2)
	s.Require().Equal(http.StatusCreated, code, string(raw))

	var order orderResponse
	s.decode(raw, &order)
	s.Equal("25.00", order.TotalAmount)
	s.Equal("pending", order.Status)
	s.Require().Len(order.Items, 1)
	s.Equal("Kettle", order.Items[0].Name)
	s.Equal("12.50", order.Items[0].Price)

	code, raw = s.do(http.MethodGet, "/api/v1/products/"+product.ID, seller, nil)
	s.Require().Equal(http.StatusOK, code)
	var stored productResponse
	s.decode(raw, &stored)
	s.EqualValues(3, stored.Stock)

	// Чужой заказ не виден
	code, _ = s.do(http.MethodGet, "/api/v1/orders/"+order.ID, seller, nil)
	s.Equal(http.StatusNotFound, code)

	code, raw = s.do(http.MethodGet, "/api/v1/orders/?limit=10", buyer, nil)
	s.Require().Equal(http.StatusOK, code)
	var page ordersPageResponse
	s.decode(raw, &page)
	s.Len(page.Orders, 1)
	s.Equal(1, page.Pagination.Total)
	s.False(page.Pagination.HasMore)

	code, raw = s.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", buyer, nil)
	s.Require().Equal(http.StatusOK, code, string(raw))
	var cancelled cancelOrderResponse
	s.decode(raw, &cancelled)
	s.Equal("cancelled", cancelled.Order.Status)
	s.Empty(cancelled.RestockSkipped)

	code, raw = s.do(http.MethodGet, "/api/v1/products/"+product.ID, seller, nil)
	s.Require().Equal(http.StatusOK, code)
	s.decode(raw, &stored)
	s.EqualValues(5, stored.Stock)

	code, raw = s.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", buyer, nil)
	s.Equal(http.StatusForbidden, code)
	s.Equal(CodeForbiddenState, s.errorCode(raw).Code)
}

func (s *RouterSuite) TestInsufficientStock() {
	s.register(seller)
	s.register(buyer)
	product := s.createProduct("3", 1)

	code, raw := s.createOrder(product.ID, 2)
	s.Require().Equal(http.StatusConflict, code)

	var resp struct {
		Code    string                   `json:"code"`
		Details insufficientStockDetails `json:"details"`
	}
	s.decode(raw, &resp)
	s.Equal(CodeInsufficientStock, resp.Code)
	s.Equal(product.ID, resp.Details.ProductID)
	s.EqualValues(1, resp.Details.Available)
	s.EqualValues(2, resp.Details.Requested)
}

func (s *RouterSuite) TestStatusTransitions() {
	s.register(seller)
	s.register(buyer)
	product := s.createProduct("100.00", 10)

	code, raw := s.createOrder(product.ID, 1)
	s.Require().Equal(http.StatusCreated, code)
	var order orderResponse
	s.decode(raw, &order)

	path := "/api/v1/orders/" + order.ID + "/status"

	code, raw = s.do(http.MethodPatch, path, buyer, updateOrderStatusRequest{Status: "delivered"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(CodeIllegalTransition, s.errorCode(raw).Code)

	code, raw = s.do(http.MethodPatch, path, buyer, updateOrderStatusRequest{Status: "teleported"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(CodeValidation, s.errorCode(raw).Code)

	for _, next := range []string{"processing", "shipped", "delivered"} {
		code, raw = s.do(http.MethodPatch, path, buyer, updateOrderStatusRequest{Status: next})
		s.Require().Equal(http.StatusOK, code, string(raw))
		s.decode(raw, &order)
		s.Equal(next, order.Status)
	}

	code, raw = s.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", buyer, nil)
	s.Equal(http.StatusForbidden, code)
	s.Equal(CodeForbiddenState, s.errorCode(raw).Code)
}

func (s *RouterSuite) TestProductQuotaExceeded() {
	s.register(seller)

	// План free допускает 10 товаров
	for i := 0; i < 10; i++ {
		s.createProduct(fmt.Sprintf("%d.99", i+1), 1)
	}

	code, raw := s.do(http.MethodPost, "/api/v1/products/", seller, createProductRequest{
		Name:        "Kettle",
		Description: "Electric kettle 1.7L",
		Price:       "1.00",
		Category:    "home",
		Stock:       1,
	})
	s.Equal(http.StatusForbidden, code)
	s.Equal(CodeQuotaExceeded, s.errorCode(raw).Code)

	code, raw = s.do(http.MethodGet, "/api/v1/users/limits", seller, nil)
	s.Require().Equal(http.StatusOK, code)
	var limits limitsResponse
	s.decode(raw, &limits)
	s.EqualValues(0, limits.Products.Current)
	s.EqualValues(10, limits.Products.Max)
}

func (s *RouterSuite) TestUnregisteredUserHasNoQuota() {
	code, raw := s.do(http.MethodPost, "/api/v1/products/", seller, createProductRequest{
		Name:        "Kettle",
		Description: "Electric kettle 1.7L",
		Price:       "1.00",
		Category:    "home",
		Stock:       1,
	})
	s.Equal(http.StatusForbidden, code)
	s.Equal(CodeQuotaExceeded, s.errorCode(raw).Code)
}

func (s *RouterSuite) TestBadRequests() {
	s.register(seller)

	code, raw := s.do(http.MethodPost, "/api/v1/products/", seller, map[string]interface{}{"unknown": 1})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(CodeBadRequest, s.errorCode(raw).Code)

	code, raw = s.do(http.MethodPost, "/api/v1/products/", seller, createProductRequest{
		Name:        "Kettle",
		Description: "Electric kettle 1.7L",
		Price:       "1.999",
		Category:    "home",
	})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(CodeValidation, s.errorCode(raw).Code)

	code, raw = s.do(http.MethodGet, "/api/v1/orders/?limit=abc", seller, nil)
	s.Equal(http.StatusBadRequest, code)
	s.Equal(CodeValidation, s.errorCode(raw).Code)
}

func (s *RouterSuite) TestProductManagement() {
	s.register(seller)
	product := s.createProduct("10.00", 2)

	name := "Steel kettle"
	price := "11.50"
	code, raw := s.do(http.MethodPatch, "/api/v1/products/"+product.ID, seller, updateProductRequest{
		Name:  &name,
		Price: &price,
	})
	s.Require().Equal(http.StatusOK, code, string(raw))
	var updated productResponse
	s.decode(raw, &updated)
	s.Equal(name, updated.Name)
	s.Equal("11.50", updated.Price)

	// Чужой товар выглядит как отсутствующий
	code, _ = s.do(http.MethodPatch, "/api/v1/products/"+product.ID, buyer, updateProductRequest{Name: &name})
	s.Equal(http.StatusNotFound, code)

	code, raw = s.do(http.MethodPost, "/api/v1/products/"+product.ID+"/restock", seller, restockRequest{Quantity: 3})
	s.Require().Equal(http.StatusOK, code, string(raw))
	s.decode(raw, &updated)
	s.EqualValues(5, updated.Stock)

	code, raw = s.do(http.MethodGet, "/api/v1/products/", seller, nil)
	s.Require().Equal(http.StatusOK, code)
	var page productsPageResponse
	s.decode(raw, &page)
	s.Len(page.Products, 1)

	code, _ = s.do(http.MethodDelete, "/api/v1/products/"+product.ID, seller, nil)
	s.Equal(http.StatusNoContent, code)

	code, _ = s.do(http.MethodGet, "/api/v1/products/"+product.ID, seller, nil)
	s.Equal(http.StatusNotFound, code)
}

func (s *RouterSuite) TestRegisterAndChangePlan() {
	code, raw := s.do(http.MethodPost, "/api/v1/users/register", seller, registerUserRequest{Plan: "standard"})
	s.Require().Equal(http.StatusCreated, code, string(raw))
	var limits limitsResponse
	s.decode(raw, &limits)
	s.Equal("standard", limits.Plan)

	// Повторная регистрация не меняет план
	code, raw = s.do(http.MethodPost, "/api/v1/users/register", seller, nil)
	s.Require().Equal(http.StatusCreated, code)
	s.decode(raw, &limits)
	s.Equal("standard", limits.Plan)

	code, raw = s.do(http.MethodPatch, "/api/v1/users/plan", seller, changePlanRequest{Plan: "premium"})
	s.Require().Equal(http.StatusOK, code, string(raw))
	s.decode(raw, &limits)
	s.Equal("premium", limits.Plan)

	code, raw = s.do(http.MethodPatch, "/api/v1/users/plan", seller, changePlanRequest{Plan: "platinum"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(CodeValidation, s.errorCode(raw).Code)

	code, _ = s.do(http.MethodGet, "/api/v1/users/limits", buyer, nil)
	s.Equal(http.StatusNotFound, code)
}

func TestMonthlyLimitsReset(t *testing.T) {
	store := memory.NewStore()
	limitsUC := usecase.NewLimitsUC(memory.NewUserLimitsRepo(store), logger.NewNopLogger())
	ctx := context.Background()

	_, err := limitsUC.RegisterUser(ctx, seller, "")
	require.NoError(t, err)
	ok, err := limitsUC.DecrementLimit(ctx, seller, "products")
	require.NoError(t, err)
	require.True(t, ok)

	var seen bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = true
		w.WriteHeader(http.StatusOK)
	})

	run := func(now time.Time, userID string) {
		handler := Identity(MonthlyLimitsReset(limitsUC, logger.NewNopLogger(), func() time.Time { return now })(next))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserIDHeader, userID)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// В том же месяце счётчики не трогаются
	run(time.Now().UTC(), seller)
	limits, err := limitsUC.GetLimits(ctx, seller)
	require.NoError(t, err)
	assert.EqualValues(t, 9, limits.Products.Current)

	run(time.Now().UTC().AddDate(0, 2, 0), seller)
	limits, err = limitsUC.GetLimits(ctx, seller)
	require.NoError(t, err)
	assert.EqualValues(t, 10, limits.Products.Current)

	// Незарегистрированный пользователь проходит дальше
	seen = false
	run(time.Now().UTC(), "ghost")
	assert.True(t, seen)
}

func TestParsePriceToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "599.99", want: 59999},
		{in: "600", want: 60000},
		{in: "0.5", want: 50},
		{in: " 12.50 ", want: 1250},
		{in: "1.230", want: 123},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1.999", wantErr: true},
		{in: "1000000001", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePriceToCents(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.00", formatCents(0))
	assert.Equal(t, "0.05", formatCents(5))
	assert.Equal(t, "25.00", formatCents(2500))
	assert.Equal(t, "599.99", formatCents(59999))
}
