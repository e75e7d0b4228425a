// Package auth signs and verifies the compact session tokens carried in the
// auth cookie, and moves the verified principal through request contexts.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/its-tarun-2505/Trashure/models"
)

// DefaultTTL is the validity window stamped into every token.
const DefaultTTL = 7 * 24 * time.Hour

// Claims is the signed claim set: sub, role, email, iat and exp.
type Claims struct {
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a server-held secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL is the validity window of issued tokens.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Sign stamps iat and exp onto the caller's sub/role/email and returns the
// signed header.payload.signature token.
func (c *Codec) Sign(claims Claims) (string, error) {
	now := c.now().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify returns the claims of a well-formed, correctly signed, unexpired
// token. Any failure yields (nil, false); nothing else escapes.
func (c *Codec) Verify(tokenString string) (*Claims, bool) {
	if tokenString == "" {
		return nil, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, false
	}
	return claims, true
}
