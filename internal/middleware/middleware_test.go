package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/internal/middleware"
	"github.com/fastygo/svckit/pkg/authtoken"
	"github.com/fastygo/svckit/pkg/httpcontext"
)

type stubAuth struct {
	token  string
	claims *authtoken.Claims
}

func (s stubAuth) Authenticate(_ context.Context, token string) (*authtoken.Claims, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	if token != s.token {
		return nil, domain.ErrSessionExpired
	}
	return s.claims, nil
}

func newRequest(auth string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	ctx.Request.SetRequestURI("/api/v1/tasks")
	if auth != "" {
		ctx.Request.Header.Set(fasthttp.HeaderAuthorization, auth)
	}
	return &ctx
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	auth := stubAuth{token: "good", claims: &authtoken.Claims{UserID: "alice", SessionID: "s1"}}

	cases := []struct {
		name   string
		header string
		status int
		code   string
		user   string
	}{
		{name: "bearer", header: "Bearer good", status: fasthttp.StatusOK, user: "alice"},
		{name: "raw token", header: "good", status: fasthttp.StatusOK, user: "alice"},
		{name: "missing", header: "", status: fasthttp.StatusUnauthorized, code: "auth.unauthorized"},
		{name: "stale", header: "Bearer old", status: fasthttp.StatusUnauthorized, code: "auth.session_expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := middleware.JWTAuth(auth, nil)(func(ctx *fasthttp.RequestCtx) {
				seen = httpcontext.UserID(ctx)
			})
			ctx := newRequest(tc.header)
			h(ctx)

			assert.Equal(t, tc.status, ctx.Response.StatusCode())
			assert.Equal(t, tc.user, seen)
			if tc.code != "" {
				body := ctx.Response.Body()
				assert.Equal(t, int64(-2), gjson.GetBytes(body, "result").Int())
				assert.Equal(t, tc.code, gjson.GetBytes(body, "code").String())
				assert.False(t, gjson.GetBytes(body, "extra").Exists())
			}
		})
	}
}

func TestRecover_writes_fail_envelope(t *testing.T) {
	t.Parallel()

	h := middleware.Recover(nil)(func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("partial")
		panic("nil map write")
	})
	ctx := newRequest("")
	require.NotPanics(t, func() { h(ctx) })

	body := ctx.Response.Body()
	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Equal(t, int64(-3), gjson.GetBytes(body, "result").Int())
	assert.Equal(t, "internal error", gjson.GetBytes(body, "msg").String())
	assert.Equal(t, "nil map write", gjson.GetBytes(body, "detail").String())
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	calls := 0
	h := middleware.RateLimit(middleware.RateLimitConfig{
		Rate:    0.001,
		Burst:   2,
		KeyFunc: func(ctx *fasthttp.RequestCtx) string { return string(ctx.Request.Header.Peek("X-Client")) },
	})(func(*fasthttp.RequestCtx) { calls++ })

	send := func(client string) *fasthttp.RequestCtx {
		ctx := newRequest("")
		ctx.Request.Header.Set("X-Client", client)
		h(ctx)
		return ctx
	}

	send("a")
	send("a")
	limited := send("a")
	send("b")

	assert.Equal(t, 3, calls)
	assert.Equal(t, fasthttp.StatusTooManyRequests, limited.Response.StatusCode())
	assert.Equal(t, "req.rate_limited", gjson.GetBytes(limited.Response.Body(), "code").String())
	assert.NotEmpty(t, string(limited.Response.Header.Peek(fasthttp.HeaderRetryAfter)))
}

func TestRateLimit_disabled(t *testing.T) {
	t.Parallel()

	calls := 0
	h := middleware.RateLimit(middleware.RateLimitConfig{})(func(*fasthttp.RequestCtx) { calls++ })
	for i := 0; i < 100; i++ {
		h(newRequest(""))
	}
	assert.Equal(t, 100, calls)
}

func TestChain_order(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return func(ctx *fasthttp.RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}
	h := middleware.Chain(func(*fasthttp.RequestCtx) { order = append(order, "handler") },
		mark("outer"), middleware.AccessLog(nil), mark("inner"))
	ctx := newRequest("")
	h(ctx)

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	assert.NotEmpty(t, string(ctx.Response.Header.Peek(httpcontext.HeaderRequestID)))
}
