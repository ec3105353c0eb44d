package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// TokenIssuer signs and validates session tokens. Validation is fully
// stateless: signature and embedded expiry are the sole source of truth.
type TokenIssuer struct {
	secret   []byte
	validity time.Duration
}

func NewTokenIssuer(secret string, validity time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), validity: validity}
}

// Validity returns the token validity window, which is also the TTL of the
// cached session copy.
func (t *TokenIssuer) Validity() time.Duration {
	return t.validity
}

func (t *TokenIssuer) Issue(userID uuid.UUID, username string, now time.Time) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
		UserID:   userID.String(),
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *TokenIssuer) Validate(tokenString string, now time.Time) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidSignature
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	return claims, nil
}
