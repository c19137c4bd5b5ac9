package auth

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/craftable/errx"
)

// Config configuración del módulo de autenticación
type Config struct {
	JWT JWTConfig `json:"jwt" yaml:"jwt"`
}

// JWTConfig configuración para JWT
type JWTConfig struct {
	SecretKey      string        `json:"secret_key" yaml:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	Issuer         string        `json:"issuer" yaml:"issuer"`
	Audience       string        `json:"audience" yaml:"audience"`
}

// DefaultConfig retorna configuración por defecto
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTokenTTL: time.Hour,
			Issuer:         "flowpilot",
			Audience:       "flowpilot-api",
		},
	}
}

// Validate valida la configuración
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return ErrMissingJWTSecret()
	}

	if len(c.JWT.SecretKey) < 32 {
		return ErrWeakJWTSecret()
	}

	if c.JWT.AccessTokenTTL <= 0 {
		return ErrInvalidTokenTTL().WithDetail("token_type", "access")
	}

	return nil
}

// Config error codes
var (
	CodeMissingJWTSecret = ErrRegistry.Register("MISSING_JWT_SECRET", errx.TypeValidation, http.StatusBadRequest, "JWT secret key is required")
	CodeWeakJWTSecret    = ErrRegistry.Register("WEAK_JWT_SECRET", errx.TypeValidation, http.StatusBadRequest, "JWT secret key must be at least 32 characters")
	CodeInvalidTokenTTL  = ErrRegistry.Register("INVALID_TOKEN_TTL", errx.TypeValidation, http.StatusBadRequest, "Invalid token TTL")
)

func ErrMissingJWTSecret() *errx.Error {
	return ErrRegistry.New(CodeMissingJWTSecret)
}

func ErrWeakJWTSecret() *errx.Error {
	return ErrRegistry.New(CodeWeakJWTSecret)
}

func ErrInvalidTokenTTL() *errx.Error {
	return ErrRegistry.New(CodeInvalidTokenTTL)
}
