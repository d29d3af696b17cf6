package middleware

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/pkg/authtoken"
	"github.com/fastygo/svckit/pkg/httpcontext"
)

// Authenticator checks a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*authtoken.Claims, error)
}

// JWTAuth rejects requests without a valid bearer token with a Warn envelope
// and records the caller's identity for handlers.
func JWTAuth(auth Authenticator, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			claims, err := auth.Authenticate(ctx, extractToken(ctx))
			if err != nil {
				logger.Debug("request rejected", zap.String("path", string(ctx.Path())), zap.Error(err))
				writeEnvelope(ctx, transport.FromError(err))
				return
			}

			httpcontext.SetIdentity(ctx, claims.UserID, claims.SessionID)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)))
	if header == "" {
		return ""
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return header
}
