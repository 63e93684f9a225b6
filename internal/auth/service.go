// Package auth issues the bearer tokens that guard administrative endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/offloader/service/internal/config"
	"github.com/offloader/service/internal/middleware"
)

const tokenTTL = 12 * time.Hour

// ErrInvalidAPIKey is returned when the presented key does not match.
var ErrInvalidAPIKey = errors.New("invalid API key")

// ErrDisabled is returned when no admin API key is configured.
var ErrDisabled = errors.New("admin API key is not configured")

// Token is a signed admin token.
type Token struct {
	Token     string    `json:"token"     example:"eyJhbGci..."`
	ExpiresAt time.Time `json:"expiresAt" example:"2026-02-27T14:48:34Z"`
}

// Service issues admin tokens.
type Service struct {
	cfg *config.Config
	now func() time.Time
}

// NewService creates a new auth Service.
func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg, now: time.Now}
}

// IssueAdminToken exchanges the configured admin API key for a JWT.
func (s *Service) IssueAdminToken(apiKey string) (*Token, error) {
	if s.cfg.AdminAPIKey == "" {
		return nil, ErrDisabled
	}
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.cfg.AdminAPIKey)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	now := s.now()
	expiresAt := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub":  "admin",
		"role": middleware.RoleAdmin,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Token: signed, ExpiresAt: expiresAt}, nil
}
