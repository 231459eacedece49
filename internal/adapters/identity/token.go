package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PabloGalante/chatsync/internal/domain"
)

// Claims is the subset of ID token claims the client needs. The display
// identity is the email when present, as the chat screen shows it.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) SenderID() domain.SenderID {
	if c.Email != "" {
		return domain.SenderID(c.Email)
	}
	return domain.SenderID(c.Subject)
}

// ParseIDToken verifies an HS256 ID token and returns its claims.
func ParseIDToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("missing secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.SenderID() == "" {
		return nil, errors.New("id token carries neither email nor subject")
	}
	return claims, nil
}

// FromToken returns a session signed in as the token's identity.
func FromToken(tokenString, secret string) (*Session, error) {
	claims, err := ParseIDToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	return NewSession(claims.SenderID()), nil
}
