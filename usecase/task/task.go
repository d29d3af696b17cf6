// Package task holds the task use cases. Every operation answers with a
// transport envelope; repository errors never leave this package raw.
package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/dbconn"
	appLogger "github.com/fastygo/svckit/pkg/logger"
	"github.com/fastygo/svckit/repository"
)

// Input carries the client-editable task fields.
type Input struct {
	Title       string
	Description string
	Status      string
	Priority    int
	DueDate     *time.Time
	Metadata    map[string]string
}

// Stats summarizes a user's tasks by status.
type Stats struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type UseCase struct {
	tasks  repository.TaskRepository
	tx     repository.Transactor
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, tx repository.Transactor, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		tx:     tx,
		logger: logger,
	}
}

func (uc *UseCase) List(ctx context.Context, userID string, filter repository.TaskFilter) transport.Envelope[[]domain.Task] {
	if userID == "" {
		return failed[[]domain.Task](ctx, uc.logger, "list", domain.ErrUnauthorized)
	}
	filter.UserID = userID
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	tasks, err := uc.tasks.List(ctx, dbconn.Absent[repository.Querier](), filter)
	if err != nil {
		return failed[[]domain.Task](ctx, uc.logger, "list", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return transport.WithExtra(transport.NewSuccess("ok"), &tasks)
}

func (uc *UseCase) Get(ctx context.Context, userID, id string) transport.Envelope[domain.Task] {
	task, err := uc.owned(ctx, dbconn.Absent[repository.Querier](), userID, id)
	if err != nil {
		return failed[domain.Task](ctx, uc.logger, "get", err)
	}
	return transport.WithExtra(transport.NewSuccess("ok"), task)
}

func (uc *UseCase) Create(ctx context.Context, userID string, in Input) transport.Envelope[domain.Task] {
	if userID == "" {
		return failed[domain.Task](ctx, uc.logger, "create", domain.ErrUnauthorized)
	}
	if err := normalize(&in); err != nil {
		return failed[domain.Task](ctx, uc.logger, "create", err)
	}

	task := &domain.Task{UserID: userID}
	apply(task, in)
	created, err := uc.tasks.Create(ctx, dbconn.Absent[repository.Querier](), task)
	if err != nil {
		return failed[domain.Task](ctx, uc.logger, "create", err)
	}
	return transport.WithExtra(transport.NewSuccess("task created"), created)
}

// Update replaces the editable fields of a task the user owns. The ownership
// check and the write share one transaction.
func (uc *UseCase) Update(ctx context.Context, userID, id string, in Input) transport.Envelope[domain.Task] {
	if err := normalize(&in); err != nil {
		return failed[domain.Task](ctx, uc.logger, "update", err)
	}

	var updated *domain.Task
	err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.PgConn) error {
		task, err := uc.owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		apply(task, in)
		if err := uc.tasks.Update(ctx, tx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return failed[domain.Task](ctx, uc.logger, "update", err)
	}
	return transport.WithExtra(transport.NewSuccess("task updated"), updated)
}

// Complete marks a task completed. Completing a completed task is a warning,
// not an error.
func (uc *UseCase) Complete(ctx context.Context, userID, id string) transport.Envelope[domain.Task] {
	var (
		task    *domain.Task
		already bool
	)
	err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.PgConn) error {
		t, err := uc.owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		task = t
		if !t.Complete() {
			already = true
			return nil
		}
		return uc.tasks.Update(ctx, tx, t)
	})
	if err != nil {
		return failed[domain.Task](ctx, uc.logger, "complete", err)
	}
	if already {
		return transport.WithExtra(transport.NewWarn("task already completed"), task)
	}
	return transport.WithExtra(transport.NewSuccess("task completed"), task)
}

func (uc *UseCase) Delete(ctx context.Context, userID, id string) transport.Envelope[transport.None] {
	err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.PgConn) error {
		if _, err := uc.owned(ctx, tx, userID, id); err != nil {
			return err
		}
		return uc.tasks.Delete(ctx, tx, id)
	})
	if err != nil {
		return failed[transport.None](ctx, uc.logger, "delete", err)
	}
	return transport.NewSuccess("task deleted")
}

func (uc *UseCase) Stats(ctx context.Context, userID string) transport.Envelope[Stats] {
	if userID == "" {
		return failed[Stats](ctx, uc.logger, "stats", domain.ErrUnauthorized)
	}
	counts, err := uc.tasks.CountByStatus(ctx, dbconn.Absent[repository.Querier](), userID)
	if err != nil {
		return failed[Stats](ctx, uc.logger, "stats", err)
	}

	stats := Stats{Counts: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return transport.WithExtra(transport.NewSuccess("ok"), &stats)
}

func (uc *UseCase) owned(ctx context.Context, db repository.PgConn, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if id == "" {
		return nil, domain.ErrMissingParameter
	}
	task, err := uc.tasks.GetByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(userID) {
		return nil, domain.ErrForbidden
	}
	return task, nil
}

// normalize applies the task rules to in before any task is loaded.
func normalize(in *Input) error {
	var draft domain.Task
	apply(&draft, *in)
	if err := draft.Normalize(); err != nil {
		return err
	}
	in.Title = draft.Title
	in.Status = draft.Status
	return nil
}

func apply(task *domain.Task, in Input) {
	task.Title = in.Title
	task.Description = in.Description
	task.Status = in.Status
	task.Priority = in.Priority
	task.DueDate = in.DueDate
	task.Metadata = in.Metadata
}

// failed maps err to an envelope and logs the ones that are not the caller's
// fault.
func failed[E any](ctx context.Context, logger *zap.Logger, op string, err error) transport.Envelope[E] {
	env := transport.FromError(err)
	if env.Result == transport.Fail {
		appLogger.WithRequestID(ctx, logger).Error("task operation failed", zap.String("op", op), zap.Error(err))
	}
	return transport.WithExtra[E](env, nil)
}
