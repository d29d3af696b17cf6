package main

import (
	"context"
	"log"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/svckit/api/handler"
	"github.com/fastygo/svckit/internal/config"
	"github.com/fastygo/svckit/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/svckit/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/svckit/internal/infrastructure/redis"
	"github.com/fastygo/svckit/internal/metrics"
	"github.com/fastygo/svckit/internal/middleware"
	"github.com/fastygo/svckit/internal/router"
	"github.com/fastygo/svckit/internal/services/lifecycle"
	"github.com/fastygo/svckit/pkg/authtoken"
	"github.com/fastygo/svckit/pkg/dbconn"
	"github.com/fastygo/svckit/pkg/httpcontext"
	"github.com/fastygo/svckit/pkg/logger"
	"github.com/fastygo/svckit/repository/postgres"
	redisRepo "github.com/fastygo/svckit/repository/redis"
	authUC "github.com/fastygo/svckit/usecase/auth"
	taskUC "github.com/fastygo/svckit/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	var (
		mtr      *metrics.Metrics
		connOpts []dbconn.Option
	)
	if cfg.HTTP.EnableMetrics {
		mtr = metrics.New()
		connOpts = append(connOpts, dbconn.WithObserver(mtr))
	}

	// Neither pool is opened here. The first request that needs one opens it.
	pgOpts := append([]dbconn.Option{dbconn.WithEnabled(cfg.Features.DB)}, connOpts...)
	pgConns := pgInfra.NewResolver(zapLogger, pgOpts...)
	manager.RegisterCloser("postgres", pgConns.Close)
	redisOpts := append([]dbconn.Option{dbconn.WithEnabled(cfg.Features.Redis)}, connOpts...)
	redisConns := redisInfra.NewResolver(cfg.Redis, zapLogger, redisOpts...)
	manager.RegisterCloser("redis", redisConns.Close)

	mon, err := monitor.New(cfg.Monitor.Schedule, 0, zapLogger,
		monitor.ResolverCheck("postgres", cfg.Features.DB, pgConns, func(ctx context.Context, q pgInfra.Querier) error {
			_, err := q.Exec(ctx, "SELECT 1")
			return err
		}),
		monitor.ResolverCheck("redis", cfg.Features.Redis, redisConns, func(ctx context.Context, c goRedis.Cmdable) error {
			return c.Ping(ctx).Err()
		}),
	)
	if err != nil {
		zapLogger.Fatal("monitor setup failed", zap.Error(err))
	}
	mon.Start()
	manager.Register("monitor", mon.Stop)

	signer, err := authtoken.NewSigner(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
	if err != nil {
		zapLogger.Fatal("token signer setup failed", zap.Error(err))
	}

	taskRepo := postgres.NewTaskRepository(pgConns, zapLogger)
	sessionRepo := redisRepo.NewSessionRepository(redisConns, cfg.JWT.SessionTTL)

	authUseCase := authUC.New(sessionRepo, signer, cfg.JWT.SessionTTL, zapLogger)
	taskUseCase := taskUC.New(taskRepo, taskRepo, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:   apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Task:   apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	if mtr != nil {
		handlers.Metrics = mtr.Handler()
	}

	r := router.New(handlers, middleware.JWTAuth(authUseCase, zapLogger))

	chain := []middleware.Middleware{
		middleware.Recover(zapLogger),
		middleware.AccessLog(zapLogger),
		middleware.RateLimit(middleware.RateLimitConfig{Rate: cfg.HTTP.RateLimit, Burst: cfg.HTTP.RateBurst}),
	}
	if mtr != nil {
		chain = append([]middleware.Middleware{mtr.Instrument}, chain...)
	}

	server := &fasthttp.Server{
		Handler:      middleware.Chain(r.Handler, chain...),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.Bool("db", cfg.Features.DB && dbconn.Enabled),
			zap.Bool("redis", cfg.Features.Redis))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
