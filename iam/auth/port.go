package auth

import (
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// TokenService define el contrato para el manejo de tokens de servicio
type TokenService interface {
	GenerateServiceToken(subject string, tenantID kernel.TenantID, scopes []string) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
}
