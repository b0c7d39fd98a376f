package http

import (
	"context"
	"net/http"
	"time"

	_ "github.com/DRSN-tech/order-backend/docs" // Импорт описания swagger
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// HealthFunc проверяет доступность зависимостей. nil означает готовность.
type HealthFunc func(ctx context.Context) error

type Router struct {
	router         *chi.Mux
	logger         logger.Logger
	requestTimeout time.Duration
}

func NewRouter(router *chi.Mux, logger logger.Logger, requestTimeout time.Duration) *Router {
	return &Router{router: router, logger: logger, requestTimeout: requestTimeout}
}

func (r *Router) Init(orderUC usecase.OrderUC, prUC usecase.ProductUC, limitsUC usecase.LimitsUC, health HealthFunc) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)
	if r.requestTimeout > 0 {
		r.router.Use(middleware.Timeout(r.requestTimeout))
	}

	r.router.Get("/health", healthHandler(health))
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(Identity)
		v1.Use(MonthlyLimitsReset(limitsUC, r.logger, nil))

		registerUserRoutes(v1, NewUserHandler(limitsUC, r.logger))
		registerProductRoutes(v1, NewProductHandler(prUC, limitsUC, r.logger))
		registerOrderRoutes(v1, NewOrderHandler(orderUC, limitsUC, r.logger))
	})
}

func registerUserRoutes(router chi.Router, h *UserHandler) {
	router.Route("/users", func(ur chi.Router) {
		ur.Post("/register", h.registerUser)
		ur.Get("/limits", h.getLimits)
		ur.Patch("/plan", h.changePlan)
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Post("/", prHandler.createProduct)
		pr.Get("/", prHandler.getUserProducts)
		pr.Get("/{productID}", prHandler.getProduct)
		pr.Patch("/{productID}", prHandler.updateProduct)
		pr.Delete("/{productID}", prHandler.deleteProduct)
		pr.Post("/{productID}/restock", prHandler.restockProduct)
	})
}

func registerOrderRoutes(router chi.Router, h *OrderHandler) {
	router.Route("/orders", func(or chi.Router) {
		or.Post("/", h.createOrder)
		or.Get("/", h.getUserOrders)
		or.Get("/{orderID}", h.getOrder)
		or.Patch("/{orderID}/status", h.updateOrderStatus)
		or.Post("/{orderID}/cancel", h.cancelOrder)
	})
}

// healthHandler
//
//	@Summary	Проверка готовности
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Failure	503	{object}	healthResponse
//	@Router		/health [get]
func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				WriteSuccess(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		WriteSuccess(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
