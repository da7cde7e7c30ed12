package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrConfig means the signing secret or a TTL is unset. It signals a
	// deployment problem, not a client error.
	ErrConfig = errors.New("token config incomplete")

	ErrMalformed        = errors.New("malformed token")
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

type Claims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// Codec signs and verifies the compact expiring tokens carrying a subject
// id and a random nonce. Access and refresh tokens share the secret and
// differ only in TTL.
type Codec struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c *Codec) Configured() bool {
	return len(c.Secret) > 0 && c.AccessTTL > 0 && c.RefreshTTL > 0
}

func (c *Codec) Sign(subject, nonce string, ttl time.Duration) (string, error) {
	if len(c.Secret) == 0 || ttl <= 0 {
		return "", ErrConfig
	}
	claims := Claims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.Secret)
}

func (c *Codec) SignAccess(subject, nonce string) (string, error) {
	return c.Sign(subject, nonce, c.AccessTTL)
}

func (c *Codec) SignRefresh(subject, nonce string) (string, error) {
	return c.Sign(subject, nonce, c.RefreshTTL)
}

func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	if len(c.Secret) == 0 {
		return nil, ErrConfig
	}
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return c.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformed
		}
	}
	if !tkn.Valid {
		return nil, ErrMalformed
	}
	return &claims, nil
}
