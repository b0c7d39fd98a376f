package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
)

// UserIDHeader выставляется шлюзом аутентификации.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromCtx возвращает идентификатор пользователя, положенный Identity.
func UserIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// Identity требует заголовок X-User-ID и кладёт его в контекст.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			WriteError(w, e.ErrMissingUserID)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// MonthlyLimitsReset сбрасывает счётчики пользователя, если с последнего сброса
// сменился календарный месяц. Ошибки не прерывают запрос.
func MonthlyLimitsReset(limitsUC usecase.LimitsUC, log logger.Logger, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromCtx(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			limits, err := limitsUC.GetLimits(r.Context(), userID)
			if err != nil {
				if e.KindOf(err) != e.KindNotFound {
					log.Warnf("monthly reset check failed: user_id=%s: %v", userID, err)
				}
				next.ServeHTTP(w, r)
				return
			}

			if domain.NeedsMonthlyReset(limits.ResetAt, now()) {
				if _, _, err := limitsUC.RolloverMonth(r.Context(), userID, limits.ResetAt); err != nil {
					log.Warnf("monthly reset failed: user_id=%s: %v", userID, err)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requireQuota списывает единицу квоты и пишет 403, если она исчерпана.
func requireQuota(w http.ResponseWriter, r *http.Request, limitsUC usecase.LimitsUC, userID string, t domain.LimitType) bool {
	ok, err := limitsUC.DecrementLimit(r.Context(), userID, t)
	if err != nil {
		WriteError(w, err)
		return false
	}
	if !ok {
		WriteError(w, e.NewQuotaExceededError(userID, string(t)))
		return false
	}
	return true
}
