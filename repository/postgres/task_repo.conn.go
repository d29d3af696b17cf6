//go:build connfill

package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/dbconn"
	"github.com/fastygo/svckit/repository"
)

// TaskRepository is the Postgres-backed repository.TaskRepository.
type TaskRepository struct {
	conns  dbconn.Acquirer[Querier]
	logger *zap.Logger
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository returns a repository that borrows from conns whenever a
// caller passes no connection of its own.
func NewTaskRepository(conns dbconn.Acquirer[Querier], logger *zap.Logger) *TaskRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskRepository{conns: conns, logger: logger}
}

//connfill:resolve r.conns
func (r *TaskRepository) GetByID(ctx context.Context, db dbconn.Optional[Querier], id string) (*domain.Task, error) {
	return scanTask(db.QueryRow(ctx, selectTaskByID, id))
}

//connfill:resolve r.conns
func (r *TaskRepository) List(ctx context.Context, db dbconn.Optional[Querier], filter repository.TaskFilter) ([]domain.Task, error) {
	rows, err := db.Query(ctx, selectTasks, filter.UserID, filter.Status, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, wrapQueryError("list tasks", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("list tasks", err)
	}
	return tasks, nil
}

//connfill:resolve r.conns
func (r *TaskRepository) Create(ctx context.Context, db dbconn.Optional[Querier], task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	err := db.QueryRow(ctx, insertTask,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		marshalMap(task.Metadata),
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, mapWriteError("create task", err)
	}
	return task, nil
}

// Update overwrites the mutable fields of a task owned by task.UserID.
//
//connfill:resolve r.conns
func (r *TaskRepository) Update(ctx context.Context, db dbconn.Optional[Querier], task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}

	err := db.QueryRow(ctx, updateTask,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		marshalMap(task.Metadata),
	).Scan(&task.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrTaskNotUpdated
	}
	if err != nil {
		return mapWriteError("update task", err)
	}
	return nil
}

// Delete removes a task by id.
//
//connfill:resolve r.conns
//connfill:log r.logger debug
func (r *TaskRepository) Delete(ctx context.Context, db dbconn.Optional[Querier], id string) error {
	tag, err := db.Exec(ctx, deleteTask, id)
	if err != nil {
		return mapWriteError("delete task", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// CountByStatus returns how many tasks the user has in each status.
//
//connfill:resolve r.conns
func (r *TaskRepository) CountByStatus(ctx context.Context, db dbconn.Optional[Querier], userID string) (map[string]int, error) {
	rows, err := db.Query(ctx, countTasksByStatus, userID)
	if err != nil {
		return nil, wrapQueryError("count tasks", err)
	}
	counts, err := pgx.CollectRows(rows, scanStatusCount)
	if err != nil {
		return nil, wrapQueryError("count tasks", err)
	}

	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.status] = c.n
	}
	return out, nil
}
