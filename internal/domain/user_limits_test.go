package domain

import (
	"testing"
	"time"

	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan("")
	require.NoError(t, err)
	assert.Equal(t, PlanFree, p)

	p, err = ParsePlan(" Premium ")
	require.NoError(t, err)
	assert.Equal(t, PlanPremium, p)

	_, err = ParsePlan("gold")
	require.Error(t, err)
	assert.Equal(t, e.KindValidation, e.KindOf(err))
}

func TestNewUserLimits_PlanDefaults(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	free := NewUserLimits("u", PlanFree, now)
	assert.Equal(t, Limit{Max: 10, Min: 0, Current: 10}, free.Products)
	assert.Equal(t, Limit{Max: 20, Min: 0, Current: 20}, free.Orders)
	assert.Equal(t, int64(1000), free.APICalls.Max)
	assert.Equal(t, now, free.ResetAt)

	std := NewUserLimits("u", PlanStandard, now)
	assert.Equal(t, int64(50), std.Products.Max)
	assert.Equal(t, int64(100), std.Orders.Max)

	premium := NewUserLimits("u", PlanPremium, now)
	assert.True(t, premium.Products.Unlimited())
	assert.True(t, premium.Orders.Unlimited())
	assert.False(t, premium.APICalls.Unlimited())
}

func TestUserLimits_DecrementStopsAtMin(t *testing.T) {
	now := time.Now().UTC()
	l := NewUserLimits("u", PlanFree, now)

	for i := 0; i < 10; i++ {
		ok, err := l.Decrement(LimitProducts, now)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := l.Decrement(LimitProducts, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), l.Products.Current)
	assert.Equal(t, int64(20), l.Orders.Current, "other counters untouched")
}

func TestUserLimits_UnlimitedNeverExhausts(t *testing.T) {
	now := time.Now().UTC()
	l := NewUserLimits("u", PlanPremium, now)

	for i := 0; i < 1000; i++ {
		ok, err := l.Decrement(LimitOrders, now)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, Unlimited, l.Orders.Current)
}

func TestUserLimits_UnknownType(t *testing.T) {
	l := NewUserLimits("u", PlanFree, time.Now())
	_, err := l.Decrement(LimitType("storage"), time.Now())
	assert.ErrorIs(t, err, e.ErrUnknownLimitType)
	assert.False(t, LimitType("storage").IsValid())
}

func TestUserLimits_Reset(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	l := NewUserLimits("u", PlanFree, start)
	_, _ = l.Decrement(LimitOrders, start)
	l.Plan = PlanStandard

	later := start.AddDate(0, 1, 0)
	l.Reset(later)

	assert.Equal(t, int64(100), l.Orders.Current)
	assert.Equal(t, later, l.ResetAt)
}

func TestNeedsMonthlyReset(t *testing.T) {
	jan := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)

	assert.False(t, NeedsMonthlyReset(jan, jan.Add(30*time.Minute)))
	assert.True(t, NeedsMonthlyReset(jan, jan.Add(2*time.Hour)))
	assert.True(t, NeedsMonthlyReset(jan, jan.AddDate(1, 0, 0)), "same month of another year")
	assert.False(t, NeedsMonthlyReset(time.Time{}, jan))
}
