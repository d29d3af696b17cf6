// Package router maps HTTP routes to handlers.
package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/svckit/api/handler"
	"github.com/fastygo/svckit/internal/middleware"
)

type Handlers struct {
	Auth   *apiHandler.AuthHandler
	Task   *apiHandler.TaskHandler
	Health *apiHandler.HealthHandler
	// Metrics is mounted at /metrics when set.
	Metrics fasthttp.RequestHandler
}

// New registers every route. Protected routes go through auth.
func New(handlers Handlers, auth middleware.Middleware) *router.Router {
	r := router.New()
	r.SaveMatchedRoutePath = true

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)
	r.POST("/api/v1/auth/logout", auth(handlers.Auth.Logout))
	r.POST("/api/v1/auth/extend", auth(handlers.Auth.Extend))

	r.GET("/api/v1/tasks", auth(handlers.Task.List))
	r.POST("/api/v1/tasks", auth(handlers.Task.Create))
	r.GET("/api/v1/tasks/stats", auth(handlers.Task.Stats))
	r.GET("/api/v1/tasks/{id}", auth(handlers.Task.Get))
	r.PUT("/api/v1/tasks/{id}", auth(handlers.Task.Update))
	r.DELETE("/api/v1/tasks/{id}", auth(handlers.Task.Delete))
	r.POST("/api/v1/tasks/{id}/complete", auth(handlers.Task.Complete))

	return r
}
