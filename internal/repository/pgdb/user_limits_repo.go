package pgdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const userLimitsColumns = `user_id, plan,
	products_max, products_min, products_current,
	orders_max, orders_min, orders_current,
	api_calls_max, api_calls_min, api_calls_current,
	reset_at, updated_at`

// limitColumns — префиксы колонок счётчиков. Имена колонок не приходят извне.
var limitColumns = map[domain.LimitType]string{
	domain.LimitProducts: "products",
	domain.LimitOrders:   "orders",
	domain.LimitAPICalls: "api_calls",
}

type UserLimitsRepo struct {
	pool *pgxpool.Pool
	conv converter.UserLimitsConverter
}

func NewUserLimitsRepo(pool *pgxpool.Pool, conv converter.UserLimitsConverter) *UserLimitsRepo {
	return &UserLimitsRepo{
		pool: pool,
		conv: conv,
	}
}

func (u *UserLimitsRepo) Create(ctx context.Context, limits *domain.UserLimits) (bool, error) {
	q := tr.QuerierFromCtx(ctx, u.pool)
	m := u.conv.ToModel(limits)

	query := `
		INSERT INTO user_limits (` + userLimitsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO NOTHING
	`

	tag, err := q.Exec(ctx, query,
		m.UserID, m.Plan,
		m.ProductsMax, m.ProductsMin, m.ProductsCurrent,
		m.OrdersMax, m.OrdersMin, m.OrdersCurrent,
		m.APICallsMax, m.APICallsMin, m.APICallsCurrent,
		m.ResetAt, m.UpdatedAt,
	)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (u *UserLimitsRepo) Get(ctx context.Context, userID string) (*domain.UserLimits, error) {
	q := tr.QuerierFromCtx(ctx, u.pool)

	m, err := scanUserLimits(q.QueryRow(ctx, `SELECT `+userLimitsColumns+` FROM user_limits WHERE user_id = $1`, userID))
	if err != nil {
		if noRows(err) {
			return nil, e.ErrRecordNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return u.conv.ToEntity(m), nil
}

// Decrement — условное списание одним UPDATE. Безлимитный счётчик не меняется.
func (u *UserLimitsRepo) Decrement(ctx context.Context, userID string, limitType domain.LimitType, at time.Time) (bool, error) {
	col, ok := limitColumns[limitType]
	if !ok {
		return false, e.Wrap(string(limitType), e.ErrUnknownLimitType)
	}

	q := tr.QuerierFromCtx(ctx, u.pool)

	query := fmt.Sprintf(`
		UPDATE user_limits
		SET %[1]s_current = CASE WHEN %[1]s_max < 0 THEN %[1]s_current ELSE %[1]s_current - 1 END,
			updated_at = $2
		WHERE user_id = $1 AND (%[1]s_max < 0 OR %[1]s_current > %[1]s_min)
	`, col)

	tag, err := q.Exec(ctx, query, userID, at)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

// ResetCounters — сброс одним UPDATE. Максимумы берутся из плана в самой строке, plan не пишется.
func (u *UserLimitsRepo) ResetCounters(ctx context.Context, userID string, at time.Time, seenResetAt *time.Time) (*domain.UserLimits, bool, error) {
	q := tr.QuerierFromCtx(ctx, u.pool)

	query := resetCountersQuery
	args := []any{userID, at}
	if seenResetAt != nil {
		query += ` AND reset_at = $3`
		args = append(args, *seenResetAt)
	}
	query += ` RETURNING ` + userLimitsColumns

	m, err := scanUserLimits(q.QueryRow(ctx, query, args...))
	if err == nil {
		return u.conv.ToEntity(m), true, nil
	}
	if !noRows(err) {
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	// Строки нет или её уже сбросил кто-то другой
	current, err := u.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (u *UserLimitsRepo) SetPlan(ctx context.Context, userID string, plan domain.Plan, at time.Time) error {
	q := tr.QuerierFromCtx(ctx, u.pool)

	tag, err := q.Exec(ctx, `UPDATE user_limits SET plan = $2, updated_at = $3 WHERE user_id = $1`, userID, string(plan), at)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.ErrRecordNotFound
	}

	return nil
}

// resetCountersQuery выставляет max и current каждого счётчика по плану строки.
var resetCountersQuery = buildResetCountersQuery()

func buildResetCountersQuery() string {
	sets := make([]string, 0, len(limitColumns))
	for _, t := range []domain.LimitType{domain.LimitProducts, domain.LimitOrders, domain.LimitAPICalls} {
		var cases strings.Builder
		cases.WriteString("CASE plan")
		for _, p := range domain.Plans() {
			fmt.Fprintf(&cases, " WHEN '%s' THEN %d", p, domain.PlanMax(p, t))
		}
		cases.WriteString(" END")

		sets = append(sets, fmt.Sprintf("%[1]s_max = %[2]s, %[1]s_min = 0, %[1]s_current = %[2]s", limitColumns[t], cases.String()))
	}

	return `UPDATE user_limits SET ` + strings.Join(sets, ", ") + `, reset_at = $2, updated_at = $2 WHERE user_id = $1`
}

func scanUserLimits(row rowScanner) (*converter.UserLimitsModel, error) {
	var m converter.UserLimitsModel
	err := row.Scan(
		&m.UserID, &m.Plan,
		&m.ProductsMax, &m.ProductsMin, &m.ProductsCurrent,
		&m.OrdersMax, &m.OrdersMin, &m.OrdersCurrent,
		&m.APICallsMax, &m.APICallsMin, &m.APICallsCurrent,
		&m.ResetAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
