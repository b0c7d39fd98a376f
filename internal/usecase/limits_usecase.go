package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
)

// LimitsUseCase управляет месячными квотами пользователей.
type LimitsUseCase struct {
	limitsRepo UserLimitsRepository
	logger     logger.Logger
	now        func() time.Time
}

func NewLimitsUC(limitsRepo UserLimitsRepository, logger logger.Logger) *LimitsUseCase {
	return &LimitsUseCase{
		limitsRepo: limitsRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterUser идемпотентно заводит счётчики пользователя по умолчанию для плана.
func (l *LimitsUseCase) RegisterUser(ctx context.Context, userID, plan string) (*domain.UserLimits, error) {
	const op = "LimitsUseCase.RegisterUser"

	if strings.TrimSpace(userID) == "" {
		return nil, l.fail(op, e.NewValidationError("user_id", "is required"))
	}

	p, err := domain.ParsePlan(plan)
	if err != nil {
		return nil, l.fail(op, err)
	}

	limits := domain.NewUserLimits(userID, p, l.now())
	created, err := l.limitsRepo.Create(ctx, limits)
	if err != nil {
		return nil, l.fail(op, err)
	}
	if !created {
		return l.GetLimits(ctx, userID)
	}

	l.logger.Infof("user limits registered: user_id=%s plan=%s", userID, p)
	return limits, nil
}

func (l *LimitsUseCase) GetLimits(ctx context.Context, userID string) (*domain.UserLimits, error) {
	const op = "LimitsUseCase.GetLimits"

	limits, err := l.limitsRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, l.fail(op, e.NewNotFoundError("user", userID))
		}
		return nil, l.fail(op, err)
	}

	return limits, nil
}

// DecrementLimit атомарно списывает единицу квоты. false, если квота исчерпана или пользователя нет.
func (l *LimitsUseCase) DecrementLimit(ctx context.Context, userID string, limitType domain.LimitType) (bool, error) {
	const op = "LimitsUseCase.DecrementLimit"

	if !limitType.IsValid() {
		return false, l.fail(op, e.NewValidationError("limit_type", "unknown limit type "+string(limitType)))
	}

	ok, err := l.limitsRepo.Decrement(ctx, userID, limitType, l.now())
	if err != nil {
		return false, l.fail(op, err)
	}
	if !ok {
		l.logger.Debugf("limit exhausted: user_id=%s limit=%s", userID, limitType)
	}

	return ok, nil
}

// ResetMonthlyLimits возвращает все счётчики к значениям текущего плана.
func (l *LimitsUseCase) ResetMonthlyLimits(ctx context.Context, userID string) (*domain.UserLimits, error) {
	const op = "LimitsUseCase.ResetMonthlyLimits"

	limits, _, err := l.resetCounters(ctx, userID, nil)
	if err != nil {
		return nil, l.fail(op, err)
	}

	l.logger.Infof("monthly limits reset: user_id=%s plan=%s", userID, limits.Plan)
	return limits, nil
}

// RolloverMonth сбрасывает счётчики, только если после сброса seenResetAt их никто не сбрасывал.
// Из нескольких одновременных запросов на границе месяца сброс выполняет один.
func (l *LimitsUseCase) RolloverMonth(ctx context.Context, userID string, seenResetAt time.Time) (*domain.UserLimits, bool, error) {
	const op = "LimitsUseCase.RolloverMonth"

	limits, reset, err := l.resetCounters(ctx, userID, &seenResetAt)
	if err != nil {
		return nil, false, l.fail(op, err)
	}

	if reset {
		l.logger.Infof("monthly limits rolled over: user_id=%s plan=%s", userID, limits.Plan)
	}
	return limits, reset, nil
}

func (l *LimitsUseCase) resetCounters(ctx context.Context, userID string, seenResetAt *time.Time) (*domain.UserLimits, bool, error) {
	limits, reset, err := l.limitsRepo.ResetCounters(ctx, userID, l.now(), seenResetAt)
	if err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, false, e.NewNotFoundError("user", userID)
		}
		return nil, false, err
	}
	return limits, reset, nil
}

// ChangePlan меняет план. Новые значения счётчиков вступают в силу при следующем сбросе.
func (l *LimitsUseCase) ChangePlan(ctx context.Context, userID, plan string) (*domain.UserLimits, error) {
	const op = "LimitsUseCase.ChangePlan"

	p, err := domain.ParsePlan(plan)
	if err != nil {
		return nil, l.fail(op, err)
	}
	if strings.TrimSpace(plan) == "" {
		return nil, l.fail(op, e.NewValidationError("plan", "is required"))
	}

	if err := l.limitsRepo.SetPlan(ctx, userID, p, l.now()); err != nil {
		if errors.Is(err, e.ErrRecordNotFound) {
			return nil, l.fail(op, e.NewNotFoundError("user", userID))
		}
		return nil, l.fail(op, err)
	}

	limits, err := l.GetLimits(ctx, userID)
	if err != nil {
		return nil, err
	}

	l.logger.Infof("user plan updated: user_id=%s plan=%s", userID, p)
	return limits, nil
}

func (l *LimitsUseCase) fail(op string, err error) error {
	return failWith(l.logger, op, err)
}
