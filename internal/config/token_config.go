package config

import (
	"time"

	"github.com/pkg/errors"
)

type TokenConfig interface {
	GetJWTSecret() string
	GetJWTIssuer() string
	GetJWTAudience() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Token) GetJWTIssuer() string {
	return GetEnv("JWT_ISSUER", "gemini-auth")
}

func (Token) GetJWTAudience() string {
	return GetEnv("JWT_AUDIENCE", "gemini-api")
}

func (Token) GetAccessTokenTTL() time.Duration {
	return GetDurationEnv("ACCESS_TOKEN_TTL", 168*time.Hour)
}

func (Token) GetRefreshTokenTTL() time.Duration {
	return GetDurationEnv("REFRESH_TOKEN_TTL", 720*time.Hour)
}

// Validate checks that the required settings are present.
func Validate(cfg Config) error {
	if cfg.GetJWTSecret() == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}
