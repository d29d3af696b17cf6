package repository

import (
	"context"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/dbconn"
)

// RedisConn is an optional caller-owned Redis handle, typically a pipeline.
type RedisConn = dbconn.Optional[goRedis.Cmdable]

type SessionRepository interface {
	Get(ctx context.Context, db RedisConn, id string) (*domain.Session, error)
	Save(ctx context.Context, db RedisConn, session *domain.Session) error
	Delete(ctx context.Context, db RedisConn, id string) error
	// Rotate replaces the old session with next atomically.
	Rotate(ctx context.Context, oldID string, next *domain.Session) error
}
