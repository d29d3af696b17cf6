package handler

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/httpcontext"
	"github.com/fastygo/svckit/repository"
	taskUC "github.com/fastygo/svckit/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) List(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	filter := repository.TaskFilter{
		Status: string(args.Peek("status")),
		Limit:  parseInt(args.Peek("limit"), 50),
		Offset: parseInt(args.Peek("offset"), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.List(stdCtx, httpcontext.UserID(ctx), filter))
}

// @Summary Get a task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.Get(stdCtx, httpcontext.UserID(ctx), pathParam(ctx, "id")))
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	in, ok := h.parseInput(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created(h.baseHandler, ctx, h.uc.Create(stdCtx, httpcontext.UserID(ctx), in))
}

// @Summary Update task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) Update(ctx *fasthttp.RequestCtx) {
	in, ok := h.parseInput(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.Update(stdCtx, httpcontext.UserID(ctx), pathParam(ctx, "id"), in))
}

// @Summary Complete task
// @Tags tasks
// @Router /api/v1/tasks/{id}/complete [post]
func (h *TaskHandler) Complete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	env := h.uc.Complete(stdCtx, httpcontext.UserID(ctx), pathParam(ctx, "id"))
	// Completing twice is reported as a Warn but is not a client error.
	if env.Result == transport.Warn && env.Code == nil {
		respondStatus(h.baseHandler, ctx, fasthttp.StatusOK, env)
		return
	}
	respond(h.baseHandler, ctx, env)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) Delete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.Delete(stdCtx, httpcontext.UserID(ctx), pathParam(ctx, "id")))
}

// @Summary Task counts by status
// @Tags tasks
// @Router /api/v1/tasks/stats [get]
func (h *TaskHandler) Stats(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.Stats(stdCtx, httpcontext.UserID(ctx)))
}

func (h *TaskHandler) parseInput(ctx *fasthttp.RequestCtx) (taskUC.Input, bool) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return taskUC.Input{}, false
	}

	var due *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			env := transport.FromError(domain.NewError(domain.KindInvalid, "due_date must be RFC3339")).WithDetail(err.Error())
			respond(h.baseHandler, ctx, env)
			return taskUC.Input{}, false
		}
		due = &parsed
	}

	return taskUC.Input{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     due,
		Metadata:    req.Metadata,
	}, true
}
