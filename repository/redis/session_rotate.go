package redis

import (
	"context"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/dbconn"
)

// Rotate deletes the old session and stores next in one MULTI/EXEC block.
func (r *SessionRepository) Rotate(ctx context.Context, oldID string, next *domain.Session) error {
	if next == nil || next.ID == "" {
		return domain.ErrInvalidPayload
	}
	return dbconn.Exec(ctx, r.conns, dbconn.Absent[goRedis.Cmdable](), func(ctx context.Context, c goRedis.Cmdable) error {
		_, err := c.TxPipelined(ctx, func(pipe goRedis.Pipeliner) error {
			tx := dbconn.Some[goRedis.Cmdable](pipe)
			if err := r.Delete(ctx, tx, oldID); err != nil {
				return err
			}
			return r.Save(ctx, tx, next)
		})
		if err != nil {
			return storeError("rotate session", err)
		}
		return nil
	})
}
