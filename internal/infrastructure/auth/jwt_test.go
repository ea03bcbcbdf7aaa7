package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenManagerConfig{
		Secret: "test-secret",
		Issuer: "kumotsudai-test",
		TTL:    ttl,
	})
	require.NoError(t, err)
	return m
}

func TestTokenManager(t *testing.T) {
	t.Run("issue and verify round trip", func(t *testing.T) {
		m := newTestManager(t, time.Hour)

		token, expiresAt, err := m.Issue("user-1", "hana")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		claims, err := m.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "hana", claims.Username)
		assert.Equal(t, "kumotsudai-test", claims.Issuer)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		m := newTestManager(t, time.Hour)

		_, err := m.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		m := newTestManager(t, time.Hour)

		other, err := NewTokenManager(TokenManagerConfig{Secret: "other-secret", Issuer: "kumotsudai-test"})
		require.NoError(t, err)

		token, _, err := other.Issue("user-1", "hana")
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		m := newTestManager(t, time.Millisecond)

		token, _, err := m.Issue("user-1", "hana")
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects issuer mismatch", func(t *testing.T) {
		m := newTestManager(t, time.Hour)

		other, err := NewTokenManager(TokenManagerConfig{Secret: "test-secret", Issuer: "someone-else"})
		require.NoError(t, err)

		token, _, err := other.Issue("user-1", "hana")
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("requires a secret", func(t *testing.T) {
		_, err := NewTokenManager(TokenManagerConfig{})
		assert.ErrorIs(t, err, ErrNoSecret)
	})
}
