package memory

import (
	"context"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/pkg/e"
)

type UserLimitsRepo struct {
	store *Store
}

func NewUserLimitsRepo(store *Store) *UserLimitsRepo {
	return &UserLimitsRepo{store: store}
}

func (r *UserLimitsRepo) Create(ctx context.Context, limits *domain.UserLimits) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	if _, exists := r.store.limits[limits.UserID]; exists {
		return false, nil
	}
	r.store.limits[limits.UserID] = *limits
	return true, nil
}

func (r *UserLimitsRepo) Get(ctx context.Context, userID string) (*domain.UserLimits, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	l, ok := r.store.limits[userID]
	if !ok {
		return nil, e.ErrRecordNotFound
	}
	return &l, nil
}

func (r *UserLimitsRepo) Decrement(ctx context.Context, userID string, limitType domain.LimitType, at time.Time) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	l, ok := r.store.limits[userID]
	if !ok {
		return false, nil
	}
	decremented, err := l.Decrement(limitType, at)
	if err != nil {
		return false, err
	}
	if decremented {
		r.store.limits[userID] = l
	}
	return decremented, nil
}

func (r *UserLimitsRepo) ResetCounters(ctx context.Context, userID string, at time.Time, seenResetAt *time.Time) (*domain.UserLimits, bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	l, ok := r.store.limits[userID]
	if !ok {
		return nil, false, e.ErrRecordNotFound
	}
	if seenResetAt != nil && !l.ResetAt.Equal(*seenResetAt) {
		return &l, false, nil
	}
	l.Reset(at)
	r.store.limits[userID] = l
	return &l, true, nil
}

func (r *UserLimitsRepo) SetPlan(ctx context.Context, userID string, plan domain.Plan, at time.Time) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	l, ok := r.store.limits[userID]
	if !ok {
		return e.ErrRecordNotFound
	}
	l.Plan = plan
	l.UpdatedAt = at
	r.store.limits[userID] = l
	return nil
}
