package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jimlawless/whereami"
)

// TxManager открывает транзакцию pgx и кладёт её в контекст для репозиториев.
type TxManager struct {
	db transaction.Transactional
}

func NewTxManager(db transaction.Transactional) *TxManager {
	return &TxManager{db: db}
}

// Do выполняет fn в транзакции. Ошибка или паника fn откатывают транзакцию.
// Если в контексте уже есть транзакция, fn выполняется в ней.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, txErr := tr.TxFromCtx(ctx); txErr == nil {
		return fn(ctx)
	}

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, m.db)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	pgxTx, ok := tx.Transaction().(pgx.Tx)
	if !ok {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return e.Wrap(whereami.WhereAmI(), e.ErrTransactionNotFound)
	}

	// Откат выполняется и при отменённом контексте запроса.
	defer func() {
		if r := recover(); r != nil {
			if tx.IsActive() {
				_ = tx.Rollback(context.WithoutCancel(ctx))
			}
			panic(r)
		}

		if err != nil && tx.IsActive() {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				err = errors.Join(err, e.Wrap("rollback", rbErr))
			}
		}
	}()

	if err = fn(tr.WithTx(ctx, pgxTx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
