package handler

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/internal/infrastructure/monitor"
	"github.com/fastygo/svckit/pkg/httpcontext"
)

// StatusSource reports the last observed backend state.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthReport struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    monitor.Status `json:"status"`
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
}

func NewHealthHandler(mon StatusSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	report := &HealthReport{Timestamp: time.Now().UTC(), Status: status}

	if status.Healthy() {
		respond(h.baseHandler, ctx, transport.WithExtra(transport.NewSuccess("ok"), report))
		return
	}
	env := transport.WithExtra(transport.NewFail("dependencies unhealthy"), report)
	respondStatus(h.baseHandler, ctx, fasthttp.StatusServiceUnavailable, env)
}
