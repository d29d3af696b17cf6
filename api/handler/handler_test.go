package handler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/svckit/api/handler"
	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/internal/infrastructure/monitor"
	"github.com/fastygo/svckit/pkg/authtoken"
	"github.com/fastygo/svckit/pkg/httpcontext"
	"github.com/fastygo/svckit/repository"
	authUC "github.com/fastygo/svckit/usecase/auth"
	taskUC "github.com/fastygo/svckit/usecase/task"
)

type taskStore struct {
	tasks map[string]domain.Task
}

func (s *taskStore) GetByID(_ context.Context, _ repository.PgConn, id string) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (s *taskStore) List(_ context.Context, _ repository.PgConn, f repository.TaskFilter) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range s.tasks {
		if t.UserID == f.UserID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *taskStore) Create(_ context.Context, _ repository.PgConn, t *domain.Task) (*domain.Task, error) {
	t.ID = "new"
	s.tasks[t.ID] = *t
	return t, nil
}

func (s *taskStore) Update(_ context.Context, _ repository.PgConn, t *domain.Task) error {
	s.tasks[t.ID] = *t
	return nil
}

func (s *taskStore) Delete(_ context.Context, _ repository.PgConn, id string) error {
	delete(s.tasks, id)
	return nil
}

func (s *taskStore) CountByStatus(context.Context, repository.PgConn, string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (s *taskStore) WithTx(ctx context.Context, fn func(context.Context, repository.PgConn) error) error {
	return fn(ctx, repository.PgConn{})
}

func newTaskHandler() (*handler.TaskHandler, *taskStore) {
	store := &taskStore{tasks: map[string]domain.Task{
		"1": {ID: "1", UserID: "alice", Title: "first", Status: "pending"},
	}}
	uc := taskUC.New(store, store, nil)
	return handler.NewTaskHandler(uc, httpcontext.NewAdapter(time.Second), nil), store
}

func request(method, uri, body, user string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	ctx.Request.SetBodyString(body)
	if user != "" {
		httpcontext.SetIdentity(&ctx, user, "session-"+user)
	}
	return &ctx
}

func TestTaskHandler_create(t *testing.T) {
	t.Parallel()

	h, store := newTaskHandler()
	ctx := request(fasthttp.MethodPost, "/api/v1/tasks", `{"title":"write tests","priority":2}`, "alice")
	h.Create(ctx)

	body := ctx.Response.Body()
	assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
	assert.Equal(t, int64(1), gjson.GetBytes(body, "result").Int())
	assert.Equal(t, "write tests", gjson.GetBytes(body, "extra.title").String())
	assert.Equal(t, "pending", store.tasks["new"].Status)
}

func TestTaskHandler_create_rejects_bad_input(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		code string
	}{
		{name: "not json", body: `{`, code: "req.invalid_payload"},
		{name: "bad due date", body: `{"title":"x","due_date":"tomorrow"}`},
		{name: "no title", body: `{"title":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h, _ := newTaskHandler()
			ctx := request(fasthttp.MethodPost, "/api/v1/tasks", tc.body, "alice")
			h.Create(ctx)

			body := ctx.Response.Body()
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			assert.Equal(t, int64(-1), gjson.GetBytes(body, "result").Int())
			assert.Equal(t, tc.code, gjson.GetBytes(body, "code").String())
			assert.False(t, gjson.GetBytes(body, "extra").Exists())
		})
	}
}

func TestTaskHandler_get_statuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		id     string
		user   string
		status int
	}{
		{name: "owner", id: "1", user: "alice", status: fasthttp.StatusOK},
		{name: "stranger", id: "1", user: "bob", status: fasthttp.StatusForbidden},
		{name: "missing", id: "9", user: "alice", status: fasthttp.StatusNotFound},
		{name: "anonymous", id: "1", user: "", status: fasthttp.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h, _ := newTaskHandler()
			ctx := request(fasthttp.MethodGet, "/api/v1/tasks/"+tc.id, "", tc.user)
			ctx.SetUserValue("id", tc.id)
			h.Get(ctx)
			assert.Equal(t, tc.status, ctx.Response.StatusCode())
		})
	}
}

func TestTaskHandler_complete_twice_is_ok(t *testing.T) {
	t.Parallel()

	h, _ := newTaskHandler()
	for i, want := range []int64{1, -2} {
		ctx := request(fasthttp.MethodPost, "/api/v1/tasks/1/complete", "", "alice")
		ctx.SetUserValue("id", "1")
		h.Complete(ctx)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), i)
		assert.Equal(t, want, gjson.GetBytes(ctx.Response.Body(), "result").Int(), i)
	}
}

func TestTaskHandler_list(t *testing.T) {
	t.Parallel()

	h, _ := newTaskHandler()
	ctx := request(fasthttp.MethodGet, "/api/v1/tasks?limit=10", "", "bob")
	h.List(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	extra := gjson.GetBytes(ctx.Response.Body(), "extra")
	assert.True(t, extra.IsArray())
	assert.Empty(t, extra.Array())
}

type sessionStore struct {
	data map[string]domain.Session
}

func (s *sessionStore) Get(_ context.Context, _ repository.RedisConn, id string) (*domain.Session, error) {
	v, ok := s.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &v, nil
}

func (s *sessionStore) Save(_ context.Context, _ repository.RedisConn, v *domain.Session) error {
	s.data[v.ID] = *v
	return nil
}

func (s *sessionStore) Delete(_ context.Context, _ repository.RedisConn, id string) error {
	delete(s.data, id)
	return nil
}

func (s *sessionStore) Rotate(_ context.Context, oldID string, next *domain.Session) error {
	delete(s.data, oldID)
	s.data[next.ID] = *next
	return nil
}

func TestAuthHandler_login_refresh_logout(t *testing.T) {
	t.Parallel()

	signer, err := authtoken.NewSigner("secret", "svckit", time.Minute)
	require.NoError(t, err)
	sessions := &sessionStore{data: map[string]domain.Session{}}
	h := handler.NewAuthHandler(authUC.New(sessions, signer, time.Hour, nil), nil, nil)

	ctx := request(fasthttp.MethodPost, "/api/v1/auth/login", `{"user_id":"alice"}`, "")
	h.Login(ctx)
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	sessionID := gjson.GetBytes(ctx.Response.Body(), "extra.session_id").String()
	require.NotEmpty(t, sessionID)
	assert.NotEmpty(t, gjson.GetBytes(ctx.Response.Body(), "extra.access_token").String())

	ctx = request(fasthttp.MethodPost, "/api/v1/auth/refresh", `{"session_id":"`+sessionID+`"}`, "")
	h.Refresh(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	rotated := gjson.GetBytes(ctx.Response.Body(), "extra.session_id").String()
	assert.NotEqual(t, sessionID, rotated)

	ctx = request(fasthttp.MethodPost, "/api/v1/auth/refresh", `{"session_id":"`+sessionID+`"}`, "")
	h.Refresh(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = request(fasthttp.MethodPost, "/api/v1/auth/logout", "", "")
	httpcontext.SetIdentity(ctx, "alice", rotated)
	h.Logout(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Empty(t, sessions.data)
}

type stubStatus monitor.Status

func (s stubStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	healthy := stubStatus{Components: map[string]monitor.ComponentStatus{
		"postgres": {Enabled: true},
	}}
	degraded := stubStatus{Components: map[string]monitor.ComponentStatus{
		"postgres": {Enabled: true, Ready: true, Error: "refused"},
	}}

	ctx := request(fasthttp.MethodGet, "/health", "", "")
	handler.NewHealthHandler(healthy, nil, nil).Check(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.False(t, gjson.GetBytes(ctx.Response.Body(), "extra.status.components.postgres.ready").Bool())

	ctx = request(fasthttp.MethodGet, "/health", "", "")
	handler.NewHealthHandler(degraded, nil, nil).Check(ctx)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.Equal(t, int64(-3), gjson.GetBytes(ctx.Response.Body(), "result").Int())
	assert.Equal(t, "refused", gjson.GetBytes(ctx.Response.Body(), "extra.status.components.postgres.error").String())
}
