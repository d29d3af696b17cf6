// Package handler adapts use cases to fasthttp. Handlers only decode input
// and write the envelope the use case returns.
package handler

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

// decode unmarshals the request body, answering with an IllegalArgument
// envelope when it is not valid JSON.
func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		env := transport.FromError(domain.ErrInvalidPayload).WithDetail(err.Error())
		respond(h, ctx, env)
		return false
	}
	return true
}

// respond writes env with the status derived from it.
func respond[E any](h baseHandler, ctx *fasthttp.RequestCtx, env transport.Envelope[E]) {
	respondStatus(h, ctx, transport.StatusOf(env), env)
}

// created is respond with 201 for successful creations.
func created[E any](h baseHandler, ctx *fasthttp.RequestCtx, env transport.Envelope[E]) {
	status := transport.StatusOf(env)
	if env.Ok() {
		status = fasthttp.StatusCreated
	}
	respondStatus(h, ctx, status, env)
}

func respondStatus[E any](h baseHandler, ctx *fasthttp.RequestCtx, status int, env transport.Envelope[E]) {
	body, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("encode envelope failed", zap.Error(err))
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func parseInt(value []byte, fallback int) int {
	if v, err := strconv.Atoi(string(value)); err == nil {
		return v
	}
	return fallback
}
