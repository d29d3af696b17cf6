package domain

import "time"

// Session is an authentication session kept in Redis. Its key expires
// together with ExpiresAt.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewSession opens a session for userID that lives for ttl from now.
func NewSession(id, userID string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the session is over at reference, or now when
// reference is zero. A nil session is expired.
func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// Extend moves the expiry to ttl past now. It never shortens the session.
func (s *Session) Extend(now time.Time, ttl time.Duration) {
	if next := now.Add(ttl); next.After(s.ExpiresAt) {
		s.ExpiresAt = next
	}
}

// Rotate returns the successor session under a new id. It keeps the user
// and metadata and starts a fresh lifetime.
func (s *Session) Rotate(id string, now time.Time, ttl time.Duration) *Session {
	next := NewSession(id, s.UserID, now, ttl)
	if len(s.Metadata) > 0 {
		next.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			next.Metadata[k] = v
		}
	}
	return next
}

// TTL returns how long the session has left at now, zero when expired.
func (s *Session) TTL(now time.Time) time.Duration {
	if left := s.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}
