package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"url-shortener/internal/db"
)

// Claims carried by both access and refresh tokens.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens. Access and refresh tokens
// use separate secrets so one can never stand in for the other.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *TokenManager) IssueAccess(user *db.User) (string, error) {
	return m.issue(user, m.accessSecret, m.accessTTL)
}

func (m *TokenManager) IssueRefresh(user *db.User) (string, error) {
	return m.issue(user, m.refreshSecret, m.refreshTTL)
}

func (m *TokenManager) ParseAccess(token string) (*Claims, error) {
	return m.parse(token, m.accessSecret)
}

func (m *TokenManager) ParseRefresh(token string) (*Claims, error) {
	return m.parse(token, m.refreshSecret)
}

func (m *TokenManager) issue(user *db.User, secret []byte, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		ID:    user.ID,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return claims, nil
}
