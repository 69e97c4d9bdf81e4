package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// SessionProvider resolves the calling user from a request.
type SessionProvider interface {
	UserFromRequest(r *http.Request) (string, error)
}

// JWTSessions verifies HS256 access tokens issued by the identity provider.
// The subject claim is the user id.
type JWTSessions struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

func NewJWTSessions(secret, issuer, audience string) *JWTSessions {
	return &JWTSessions{secret: []byte(secret), issuer: issuer, audience: audience, leeway: 30 * time.Second}
}

func (s *JWTSessions) UserFromRequest(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return "", errMissingToken
	}
	return s.Parse(strings.TrimSpace(hdr[7:]))
}

// Parse validates tok and returns its subject.
func (s *JWTSessions) Parse(tok string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return "", errInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// Mint signs a token for userID. Used by local tooling and tests; production
// tokens come from the identity provider.
func (s *JWTSessions) Mint(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
