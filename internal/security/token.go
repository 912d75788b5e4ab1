package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken means the credential is not a JWT and carries no claims
// the client can read.
var ErrOpaqueToken = errors.New("token is opaque")

// Claims is what a bearer token says about its holder.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func claimsOf(rc *jwt.RegisteredClaims) Claims {
	out := Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		out.ExpiresAt = rc.ExpiresAt.Time
	}
	return out
}

// Inspect reads the claims of a JWT-shaped credential without verifying
// its signature. The client holds no signing key, so nothing read here is
// trusted for authorization; it only saves a round trip for a token that
// has visibly expired.
func Inspect(tokenStr string) (Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &rc); err != nil {
		return Claims{}, ErrOpaqueToken
	}
	return claimsOf(&rc), nil
}

// TokenService signs and checks the HS256 tokens of the in-process test
// server.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// CreateForUser issues a token for username that lives for the service TTL.
func (t *TokenService) CreateForUser(username string) (string, error) {
	return t.CreateWithTTL(username, t.ttl)
}

// CreateWithTTL issues a token for username. A negative ttl yields a token
// that has already expired.
func (t *TokenService) CreateWithTTL(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry and returns the claims.
func (t *TokenService) Parse(tokenStr string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := t.parser.ParseWithClaims(tokenStr, &rc, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if rc.Subject == "" {
		return Claims{}, jwt.ErrTokenInvalidSubject
	}
	return claimsOf(&rc), nil
}
