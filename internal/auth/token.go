package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ayush/todo-auth/internal/models"
)

// MinKeyBytes is the smallest HMAC key accepted for HS256.
const MinKeyBytes = 32

// Claims is the token payload: sub, uid, roles, iat, exp (and a jti).
type Claims struct {
	UID   int64  `json:"uid"`
	Roles string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 tokens. It holds no state besides the
// key, so it is safe for concurrent use.
type TokenCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenCodec fails when the key is too short for HS256 or ttl is not positive.
func NewTokenCodec(key []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("token key is %d bytes, need at least %d", len(key), MinKeyBytes)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenCodec{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for p that expires after the configured TTL.
func (c *TokenCodec) Issue(p *models.Principal) (string, error) {
	now := c.now()
	claims := Claims{
		UID:   p.ID,
		Roles: strings.Join(p.RoleNames(), ","),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Validate reports whether token carries a good signature and has not
// expired. The reason for a rejection is only logged.
func (c *TokenCodec) Validate(token string) bool {
	if strings.TrimSpace(token) == "" {
		slog.Debug("jwt rejected", "reason", "empty")
		return false
	}
	_, err := c.parse(token)
	if err == nil {
		return true
	}
	reason := "invalid"
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		reason = "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		reason = "signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		reason = "unsupported"
	}
	slog.Debug("jwt rejected", "reason", reason, "err", err)
	return false
}

// Subject returns the username a token was issued for. Call Validate first;
// an invalid token yields "".
func (c *TokenCodec) Subject(token string) string {
	claims, err := c.parse(token)
	if err != nil {
		return ""
	}
	return claims.Subject
}
