package domain

import (
	"strings"
	"time"

	"github.com/DRSN-tech/order-backend/pkg/e"
)

// Plan — тарифный план пользователя.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// Unlimited — значение Max для безлимитного счётчика.
const Unlimited int64 = -1

// планы: products / orders / apiCalls в месяц
var planDefaults = map[Plan][3]int64{
	PlanFree:     {10, 20, 1000},
	PlanStandard: {50, 100, 5000},
	PlanPremium:  {Unlimited, Unlimited, 10000},
}

// Plans возвращает все планы в фиксированном порядке.
func Plans() []Plan {
	return []Plan{PlanFree, PlanStandard, PlanPremium}
}

// PlanMax — месячный максимум счётчика для плана.
func PlanMax(p Plan, t LimitType) int64 {
	d := planDefaults[p]
	switch t {
	case LimitProducts:
		return d[0]
	case LimitOrders:
		return d[1]
	case LimitAPICalls:
		return d[2]
	}
	return 0
}

// ParsePlan разбирает название плана. Пустая строка означает free.
func ParsePlan(s string) (Plan, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PlanFree, nil
	}
	p := Plan(s)
	if _, ok := planDefaults[p]; !ok {
		return "", e.NewValidationError("plan", "unknown plan "+s)
	}
	return p, nil
}

// LimitType — вид месячной квоты.
type LimitType string

const (
	LimitProducts LimitType = "products"
	LimitOrders   LimitType = "orders"
	LimitAPICalls LimitType = "apiCalls"
)

func (t LimitType) IsValid() bool {
	switch t {
	case LimitProducts, LimitOrders, LimitAPICalls:
		return true
	}
	return false
}

// Limit — счётчик квоты. Max < 0 означает отсутствие ограничения.
type Limit struct {
	Max     int64
	Min     int64
	Current int64
}

func newLimit(max int64) Limit {
	return Limit{Max: max, Min: 0, Current: max}
}

func (l Limit) Unlimited() bool {
	return l.Max < 0
}

// Available сообщает, можно ли списать ещё одну единицу.
func (l Limit) Available() bool {
	return l.Unlimited() || l.Current > l.Min
}

// UserLimits — месячные счётчики пользователя.
type UserLimits struct {
	UserID    string
	Plan      Plan
	Products  Limit
	Orders    Limit
	APICalls  Limit
	ResetAt   time.Time
	UpdatedAt time.Time
}

func NewUserLimits(userID string, plan Plan, now time.Time) *UserLimits {
	l := &UserLimits{UserID: userID, Plan: plan}
	l.Reset(now)
	return l
}

// Reset выставляет счётчики по умолчанию для текущего плана.
func (u *UserLimits) Reset(now time.Time) {
	u.Products = newLimit(PlanMax(u.Plan, LimitProducts))
	u.Orders = newLimit(PlanMax(u.Plan, LimitOrders))
	u.APICalls = newLimit(PlanMax(u.Plan, LimitAPICalls))
	u.ResetAt = now
	u.UpdatedAt = now
}

// Limit возвращает указатель на счётчик нужного вида.
func (u *UserLimits) Limit(t LimitType) (*Limit, error) {
	switch t {
	case LimitProducts:
		return &u.Products, nil
	case LimitOrders:
		return &u.Orders, nil
	case LimitAPICalls:
		return &u.APICalls, nil
	default:
		return nil, e.ErrUnknownLimitType
	}
}

// Decrement списывает единицу квоты. false, если квота исчерпана.
func (u *UserLimits) Decrement(t LimitType, now time.Time) (bool, error) {
	l, err := u.Limit(t)
	if err != nil {
		return false, err
	}
	if !l.Available() {
		return false, nil
	}
	if !l.Unlimited() {
		l.Current--
	}
	u.UpdatedAt = now
	return true, nil
}

// NeedsMonthlyReset сообщает, что с момента последнего сброса сменился календарный месяц.
func NeedsMonthlyReset(resetAt, now time.Time) bool {
	if resetAt.IsZero() {
		return false
	}
	resetAt, now = resetAt.UTC(), now.UTC()
	return resetAt.Year() != now.Year() || resetAt.Month() != now.Month()
}
