package postgres

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/svckit/domain"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, metadata, created_at, updated_at`

const (
	selectTaskByID = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	selectTasks = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR user_id = $1)
	  AND ($2 = '' OR status = $2)
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4
	`

	insertTask = `
	INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at, updated_at
	`

	updateTask = `
	UPDATE tasks
	SET title = $3,
		description = $4,
		status = $5,
		priority = $6,
		due_date = $7,
		metadata = $8,
		updated_at = NOW()
	WHERE id = $1 AND user_id = $2
	RETURNING updated_at
	`

	deleteTask = `DELETE FROM tasks WHERE id = $1`

	countTasksByStatus = `SELECT status, COUNT(*) FROM tasks WHERE user_id = $1 GROUP BY status`
)

// Postgres SQLSTATE codes mapped to domain errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	notNullViolation    = "23502"
)

type statusCount struct {
	status string
	n      int
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var (
		due      *time.Time
		metadata []byte
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&due,
		&metadata,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, wrapQueryError("load task", err)
	}

	task.DueDate = due
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &task.Metadata)
	}

	return &task, nil
}

func scanStatusCount(row pgx.CollectableRow) (statusCount, error) {
	var c statusCount
	err := row.Scan(&c.status, &c.n)
	return c, err
}

// mapWriteError classifies constraint failures so they reach the client as
// Warn envelopes instead of internal errors.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return domain.WrapError(domain.KindDuplicateKey, "task already exists", err)
		case foreignKeyViolation:
			return domain.WrapError(domain.KindConstraintViolation, "task is still referenced by other tasks", err)
		case checkViolation, notNullViolation:
			return domain.WrapError(domain.KindInvalid, "task violates a column constraint", err)
		}
	}
	return wrapQueryError(op, err)
}

func wrapQueryError(op string, err error) error {
	return domain.WrapError(domain.KindInternal, op+" failed", err)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

func marshalMap(data map[string]string) []byte {
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}
