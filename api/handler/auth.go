package handler

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/pkg/httpcontext"
	authUC "github.com/fastygo/svckit/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc *authUC.UseCase
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Issue a new session
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.AuthLoginRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created(h.baseHandler, ctx, h.uc.Login(stdCtx, req.UserID, seconds(req.TTL)))
}

// @Summary Rotate an existing session
// @Tags auth
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	var req transport.RefreshRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.Refresh(stdCtx, req.SessionID, seconds(req.TTL)))
}

// @Summary End the caller's session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.Logout(stdCtx, httpcontext.SessionID(ctx)))
}

// @Summary Extend the caller's session
// @Tags auth
// @Router /api/v1/auth/extend [post]
func (h *AuthHandler) Extend(ctx *fasthttp.RequestCtx) {
	ttl := seconds(parseInt(ctx.QueryArgs().Peek("ttl_seconds"), 0))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	respond(h.baseHandler, ctx, h.uc.Extend(stdCtx, httpcontext.SessionID(ctx), ttl))
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
