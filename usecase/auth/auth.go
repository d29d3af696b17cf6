// Package auth issues access tokens backed by Redis sessions.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/domain"
	"github.com/fastygo/svckit/pkg/authtoken"
	"github.com/fastygo/svckit/pkg/dbconn"
	appLogger "github.com/fastygo/svckit/pkg/logger"
	"github.com/fastygo/svckit/repository"
)

// Tokens is the login and refresh payload.
type Tokens struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	SessionID        string    `json:"session_id"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
}

type UseCase struct {
	sessions   repository.SessionRepository
	signer     *authtoken.Signer
	sessionTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func New(sessions repository.SessionRepository, signer *authtoken.Signer, sessionTTL time.Duration, logger *zap.Logger) *UseCase {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		sessions:   sessions,
		signer:     signer,
		sessionTTL: sessionTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Login opens a session for userID and issues a token bound to it. A
// non-positive ttl falls back to the configured session lifetime.
func (uc *UseCase) Login(ctx context.Context, userID string, ttl time.Duration) transport.Envelope[Tokens] {
	if userID == "" {
		return uc.failed(ctx, "login", domain.ErrMissingParameter)
	}

	session := uc.newSession(userID, ttl)
	if err := uc.sessions.Save(ctx, noConn(), session); err != nil {
		return uc.failed(ctx, "login", err)
	}
	return uc.issue(ctx, "login", session)
}

// Refresh replaces a live session with a new one and issues a fresh token.
// The old session id stops working.
func (uc *UseCase) Refresh(ctx context.Context, sessionID string, ttl time.Duration) transport.Envelope[Tokens] {
	current, err := uc.live(ctx, sessionID)
	if err != nil {
		return uc.failed(ctx, "refresh", err)
	}

	next := current.Rotate(uuid.NewString(), uc.now(), uc.lifetime(ttl))
	if err := uc.sessions.Rotate(ctx, current.ID, next); err != nil {
		return uc.failed(ctx, "refresh", err)
	}
	return uc.issue(ctx, "refresh", next)
}

// Extend pushes the expiry of a live session forward without rotating it.
// The stored session and its key expire at the new time.
func (uc *UseCase) Extend(ctx context.Context, sessionID string, ttl time.Duration) transport.Envelope[transport.None] {
	session, err := uc.live(ctx, sessionID)
	if err != nil {
		return transport.WithExtra[transport.None](uc.failed(ctx, "extend", err), nil)
	}
	session.Extend(uc.now(), uc.lifetime(ttl))
	if err := uc.sessions.Save(ctx, noConn(), session); err != nil {
		return transport.WithExtra[transport.None](uc.failed(ctx, "extend", err), nil)
	}
	return transport.NewSuccess("session extended")
}

func (uc *UseCase) Logout(ctx context.Context, sessionID string) transport.Envelope[transport.None] {
	if sessionID == "" {
		return transport.FromError(domain.ErrMissingParameter)
	}
	if err := uc.sessions.Delete(ctx, noConn(), sessionID); err != nil {
		return transport.WithExtra[transport.None](uc.failed(ctx, "logout", err), nil)
	}
	return transport.NewSuccess("logged out")
}

// Authenticate verifies the token and that its session is still live. It
// returns domain errors so the caller can build the envelope.
func (uc *UseCase) Authenticate(ctx context.Context, raw string) (*authtoken.Claims, error) {
	if raw == "" {
		return nil, domain.ErrUnauthorized
	}
	claims, err := uc.signer.Parse(raw)
	if err != nil {
		return nil, domain.WrapError(domain.KindUnauthorized, "invalid token", err).WithCode(domain.ErrUnauthorized.Code)
	}

	session, err := uc.live(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// live loads a session and treats missing or expired ones as an expired
// session. Store failures pass through unchanged.
func (uc *UseCase) live(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrMissingParameter
	}
	session, err := uc.sessions.Get(ctx, noConn(), sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if session.IsExpired(uc.now()) {
		if err := uc.sessions.Delete(ctx, noConn(), sessionID); err != nil {
			uc.logger.Warn("expired session cleanup failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (uc *UseCase) newSession(userID string, ttl time.Duration) *domain.Session {
	return domain.NewSession(uuid.NewString(), userID, uc.now(), uc.lifetime(ttl))
}

func (uc *UseCase) lifetime(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return uc.sessionTTL
	}
	return ttl
}

func (uc *UseCase) issue(ctx context.Context, op string, session *domain.Session) transport.Envelope[Tokens] {
	token, expires, err := uc.signer.Issue(session.UserID, session.ID)
	if err != nil {
		return uc.failed(ctx, op, err)
	}
	return transport.WithExtra(transport.NewSuccess("ok"), &Tokens{
		AccessToken:      token,
		TokenType:        "Bearer",
		ExpiresAt:        expires,
		SessionID:        session.ID,
		SessionExpiresAt: session.ExpiresAt,
	})
}

func (uc *UseCase) failed(ctx context.Context, op string, err error) transport.Envelope[Tokens] {
	env := transport.FromError(err)
	if env.Result == transport.Fail {
		appLogger.WithRequestID(ctx, uc.logger).Error("auth operation failed", zap.String("op", op), zap.Error(err))
	}
	return transport.WithExtra[Tokens](env, nil)
}

func noConn() repository.RedisConn {
	return dbconn.Absent[goRedis.Cmdable]()
}
