// Package auth resolves the acting user from HS256 bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"cleanops/internal/config"
	"cleanops/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims carries the actor's role next to the registered claims. The actor
// id travels in "sub".
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg config.APIAuthConfig) *TokenManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, ttl: ttl, now: time.Now}
}

func validRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleEmployee, models.RoleClient:
		return true
	}
	return false
}

// Issue signs a token for actor.
func (m *TokenManager) Issue(actor models.Actor) (string, error) {
	if !validRole(actor.Role) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, actor.Role)
	}
	now := m.now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.ID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse validates tokenString and returns the actor it names.
func (m *TokenManager) Parse(tokenString string) (models.Actor, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Actor{}, ErrExpiredToken
		}
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return models.Actor{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	if !validRole(claims.Role) {
		return models.Actor{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return models.Actor{ID: id, Role: claims.Role}, nil
}
