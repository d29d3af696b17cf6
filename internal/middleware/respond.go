// Package middleware holds the fasthttp middleware chain. Every rejection is
// written as a response envelope.
package middleware

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/svckit/api/transport"
)

// Middleware wraps a fasthttp handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Chain applies mws so that the first one is outermost.
func Chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func writeEnvelope[E any](ctx *fasthttp.RequestCtx, env transport.Envelope[E]) {
	body, err := json.Marshal(env)
	if err != nil {
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(transport.StatusOf(env))
	ctx.SetBody(body)
}
