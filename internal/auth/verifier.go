// Package auth verifies the bearer tokens issued by the external identity provider.
// It only answers "which user is this"; roles are resolved by authorization.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/config"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotConfigured   = errors.New("auth_not_configured")
)

// Identity is a verified caller.
type Identity struct {
	UserID    string
	ExpiresAt time.Time
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type JWTVerifier struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

func NewVerifier(cfg config.Config, clk clock.Clock) Verifier {
	return &JWTVerifier{
		secret: []byte(strings.TrimSpace(cfg.AuthJWTSecret)),
		issuer: strings.TrimSpace(cfg.AuthIssuer),
		clock:  clk,
	}
}

// Verify accepts HS256 tokens with a subject and an expiry in the future. The issuer is
// checked only when one is configured.
func (v *JWTVerifier) Verify(_ context.Context, raw string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, ErrNotConfigured
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}
	return Identity{UserID: subject, ExpiresAt: claims.ExpiresAt.Time.UTC()}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
