package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the claims carried by an X-Session-Token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username       string `json:"username"`
	AccessLevel    int    `json:"access_level"`
	ServiceAccount bool   `json:"service_account"`
}

// SessionIssuer signs and verifies session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *SessionIssuer) TTL() time.Duration { return s.ttl }

// Issue returns a signed session token for the principal.
func (s *SessionIssuer) Issue(p Principal) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username:       p.Username,
		AccessLevel:    int(p.AccessLevel),
		ServiceAccount: p.IsServiceAccount,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a session token and returns its principal.
func (s *SessionIssuer) Verify(tokenString string) (Principal, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("parse session token: %w", err)
	}
	if !token.Valid {
		return Principal{}, fmt.Errorf("invalid session token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid subject in session token: %w", err)
	}

	return Principal{
		UserID:           userID,
		Username:         claims.Username,
		AccessLevel:      AccessLevel(claims.AccessLevel),
		IsServiceAccount: claims.ServiceAccount,
	}, nil
}
