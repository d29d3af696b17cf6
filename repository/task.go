package repository

import (
	"context"

	"github.com/fastygo/svckit/domain"
	pgInfra "github.com/fastygo/svckit/internal/infrastructure/postgres"
	"github.com/fastygo/svckit/pkg/dbconn"
)

// Querier is the Postgres handle repositories run statements against.
type Querier = pgInfra.Querier

// PgConn is an optional caller-owned Postgres connection or transaction.
// Pass dbconn.Absent to let the repository borrow one from its resolver.
type PgConn = dbconn.Optional[pgInfra.Querier]

type TaskFilter struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

type TaskRepository interface {
	GetByID(ctx context.Context, db PgConn, id string) (*domain.Task, error)
	List(ctx context.Context, db PgConn, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, db PgConn, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, db PgConn, task *domain.Task) error
	Delete(ctx context.Context, db PgConn, id string) error
	CountByStatus(ctx context.Context, db PgConn, userID string) (map[string]int, error)
}

// Transactor runs fn inside a database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx PgConn) error) error
}
