package postgres

import (
	"context"
	"fmt"

	pgInfra "github.com/fastygo/svckit/internal/infrastructure/postgres"
	"github.com/fastygo/svckit/pkg/dbconn"
)

// Querier is the connection every repository method runs against.
type Querier = pgInfra.Querier

// WithTx runs fn inside a transaction opened on db, or on a connection
// borrowed from conns when db is absent. fn receives the transaction as its
// connection, so repository calls made with it join the transaction. Calling
// WithTx with a transaction as db opens a savepoint.
func WithTx(ctx context.Context, conns dbconn.Acquirer[Querier], db dbconn.Optional[Querier], fn func(ctx context.Context, tx dbconn.Optional[Querier]) error) error {
	return dbconn.Exec(ctx, conns, db, func(ctx context.Context, q Querier) (err error) {
		tx, err := q.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback(context.WithoutCancel(ctx))
			}
		}()

		if err = fn(ctx, dbconn.Some[Querier](tx)); err != nil {
			return err
		}
		if err = tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// WithTx runs fn in a transaction on a borrowed connection.
func (r *TaskRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbconn.Optional[Querier]) error) error {
	return WithTx(ctx, r.conns, dbconn.Absent[Querier](), fn)
}
