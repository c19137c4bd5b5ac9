package auth

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ============================================================================
// Token Types
// ============================================================================

// Scopes que el API reconoce
const (
	ScopeTurnsWrite   = "turns:write"
	ScopeSessionsRead = "sessions:read"
)

// TokenClaims representa los claims de un token de servicio
type TokenClaims struct {
	Subject   string          `json:"sub"`
	TenantID  kernel.TenantID `json:"tenant_id"`
	Scopes    []string        `json:"scopes"`
	IssuedAt  time.Time       `json:"iat"`
	ExpiresAt time.Time       `json:"exp"`
}

// ToAuthContext convierte los claims al contexto que usan los handlers
func (c *TokenClaims) ToAuthContext() *kernel.AuthContext {
	return &kernel.AuthContext{
		TenantID: c.TenantID,
		Subject:  c.Subject,
		Scopes:   c.Scopes,
	}
}

// ============================================================================
// Error Registry - Errores específicos de Auth
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeUnauthorized          = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "No autorizado")
	CodeInvalidToken          = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Token inválido")
	CodeAccessDenied          = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Acceso denegado")
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Error al generar token")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Error al validar token")
)

func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrAccessDenied() *errx.Error {
	return ErrRegistry.New(CodeAccessDenied)
}

func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrTokenValidationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenValidationFailed)
}
