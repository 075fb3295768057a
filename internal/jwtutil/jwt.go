package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and validates HS256 tokens
type Manager struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewManager creates a token manager
func NewManager(signingKey string, ttl time.Duration) *Manager {
	return &Manager{signingKey: []byte(signingKey), ttl: ttl, now: time.Now}
}

// GenerateToken creates a new JWT token for a user
func (m *Manager) GenerateToken(userID, email, role string) (string, error) {
	now := m.now()
	claims := &UserClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// ValidateToken validates the token and returns the claims
func (m *Manager) ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.signingKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
