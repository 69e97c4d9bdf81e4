//go:build !integration

package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTSessions(t *testing.T) {
	s := NewJWTSessions("test-secret", "learnhub-auth", "learnhub-billing")

	t.Run("should accept a minted token", func(t *testing.T) {
		tok, err := s.Mint("user-1", time.Minute)
		require.NoError(t, err)
		uid, err := s.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-1", uid)
	})

	t.Run("should read the bearer header case-insensitively", func(t *testing.T) {
		tok, _ := s.Mint("user-1", time.Minute)
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "bearer "+tok)
		uid, err := s.UserFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "user-1", uid)
	})

	t.Run("should reject a missing header", func(t *testing.T) {
		_, err := s.UserFromRequest(httptest.NewRequest("GET", "/", nil))
		assert.ErrorIs(t, err, errMissingToken)
	})

	t.Run("should reject expired tokens beyond leeway", func(t *testing.T) {
		tok, _ := s.Mint("user-1", -time.Minute)
		_, err := s.Parse(tok)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("should reject a foreign signature", func(t *testing.T) {
		tok, _ := NewJWTSessions("other", "learnhub-auth", "learnhub-billing").Mint("user-1", time.Minute)
		_, err := s.Parse(tok)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("should reject the wrong audience", func(t *testing.T) {
		tok, _ := NewJWTSessions("test-secret", "learnhub-auth", "someone-else").Mint("user-1", time.Minute)
		_, err := s.Parse(tok)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("should reject unsigned tokens", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Parse(tok)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("should reject tokens without expiry or subject", func(t *testing.T) {
		noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "user-1", Issuer: "learnhub-auth", Audience: jwt.ClaimStrings{"learnhub-billing"},
		}).SignedString([]byte("test-secret"))
		_, err := s.Parse(noExp)
		assert.ErrorIs(t, err, errInvalidToken)

		noSub, _ := s.Mint(" ", time.Minute)
		_, err = s.Parse(noSub)
		assert.ErrorIs(t, err, errInvalidToken)
	})
}
