//go:build connfill

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/dbconn"
	"github.com/fastygo/svckit/repository"
)

// SessionRepository stores sessions as JSON values that expire with the
// session.
type SessionRepository struct {
	conns  dbconn.Acquirer[goRedis.Cmdable]
	prefix string
	ttl    time.Duration
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a Redis-backed session repository.
func NewSessionRepository(conns dbconn.Acquirer[goRedis.Cmdable], ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepository{
		conns:  conns,
		prefix: sessionPrefix,
		ttl:    ttl,
	}
}

//connfill:resolve r.conns
func (r *SessionRepository) Get(ctx context.Context, db dbconn.Optional[goRedis.Cmdable], id string) (*domain.Session, error) {
	payload, err := db.Get(ctx, sessionKey(r.prefix, id)).Bytes()
	if errors.Is(err, goRedis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storeError("get session", err)
	}

	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, storeError("decode session", err)
	}
	return &session, nil
}

//connfill:resolve r.conns
func (r *SessionRepository) Save(ctx context.Context, db dbconn.Optional[goRedis.Cmdable], session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return storeError("encode session", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = r.ttl
	}

	if err := db.Set(ctx, sessionKey(r.prefix, session.ID), payload, ttl).Err(); err != nil {
		return storeError("save session", err)
	}
	return nil
}

//connfill:resolve r.conns
func (r *SessionRepository) Delete(ctx context.Context, db dbconn.Optional[goRedis.Cmdable], id string) error {
	if err := db.Del(ctx, sessionKey(r.prefix, id)).Err(); err != nil {
		return storeError("delete session", err)
	}
	return nil
}
