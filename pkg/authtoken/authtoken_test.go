package authtoken_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/svckit/pkg/authtoken"
)

func TestSigner_issue_then_parse(t *testing.T) {
	t.Parallel()

	s, err := authtoken.NewSigner("secret", "svckit", time.Minute)
	require.NoError(t, err)

	token, expires, err := s.Issue("user-1", "session-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 2*time.Second)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, "svckit", claims.Issuer)
}

func TestSigner_requires_secret(t *testing.T) {
	t.Parallel()

	_, err := authtoken.NewSigner("", "svckit", time.Minute)
	assert.ErrorIs(t, err, authtoken.ErrMissingSecret)
}

func TestSigner_rejects(t *testing.T) {
	t.Parallel()

	s, err := authtoken.NewSigner("secret", "svckit", time.Minute)
	require.NoError(t, err)
	other, err := authtoken.NewSigner("other", "svckit", time.Minute)
	require.NoError(t, err)
	foreign, err := authtoken.NewSigner("secret", "someone-else", time.Minute)
	require.NoError(t, err)

	wrongKey, _, err := other.Issue("u", "s")
	require.NoError(t, err)
	wrongIssuer, _, err := foreign.Issue("u", "s")
	require.NoError(t, err)
	noSession, _, err := s.Issue("u", "")
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &authtoken.Claims{
		UserID:    "u",
		SessionID: "s",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "svckit",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &authtoken.Claims{UserID: "u", SessionID: "s"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"no session":   noSession,
		"expired":      expired,
		"alg none":     unsigned,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := s.Parse(raw)
			assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
		})
	}
}
