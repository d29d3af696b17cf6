package middleware

import (
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/pkg/httpcontext"
)

// Recover turns a handler panic into a Fail envelope.
func Recover(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panicked",
						zap.String("request_id", httpcontext.RequestID(ctx)),
						zap.String("path", string(ctx.Path())),
						zap.Any("panic", rec),
						zap.Stack("stack"))
					ctx.ResetBody()
					writeEnvelope(ctx, transport.NewFail("internal error").WithDetail(fmt.Sprint(rec)))
				}
			}()
			next(ctx)
		}
	}
}
