package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/internal/config"
	"github.com/fastygo/svckit/pkg/dbconn"
)

// Querier is the connection shape repositories run statements against.
// *pgxpool.Conn, *pgxpool.Pool and pgx.Tx all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ Querier = (*pgxpool.Conn)(nil)
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// NewPool creates and validates a pgx connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		pgxCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pgxCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		pgxCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("connected to postgres",
		zap.String("host", pgxCfg.ConnConfig.Host),
		zap.String("db", pgxCfg.ConnConfig.Database),
	)
	return pool, nil
}

type pool struct {
	pool *pgxpool.Pool
}

// WrapPool exposes a pgx pool through the resolver's Pool interface. Each
// Acquire checks out a dedicated *pgxpool.Conn.
func WrapPool(p *pgxpool.Pool) dbconn.Pool[Querier] {
	return pool{pool: p}
}

func (p pool) Acquire(ctx context.Context) (Querier, func(), error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Release, nil
}

func (p pool) Close() {
	p.pool.Close()
}

// Opener reads the database configuration from the environment and builds
// the pool. It is called by the resolver on first use only.
func Opener(logger *zap.Logger) dbconn.Opener[Querier] {
	return func(ctx context.Context) (dbconn.Pool[Querier], error) {
		cfg, err := config.LoadDatabase()
		if err != nil {
			return nil, err
		}
		p, err := NewPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return WrapPool(p), nil
	}
}

// NewResolver returns the lazily initialized postgres resolver.
func NewResolver(logger *zap.Logger, opts ...dbconn.Option) *dbconn.Resolver[Querier] {
	opts = append([]dbconn.Option{dbconn.WithName("postgres"), dbconn.WithLogger(logger)}, opts...)
	return dbconn.New(Opener(logger), opts...)
}
