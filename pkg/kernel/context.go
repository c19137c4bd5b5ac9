package kernel

// ============================================================================
// Context Types - Tipos para context.Context
// ============================================================================

// AuthContext es el contexto de autenticación que se inyecta en cada request.
// Los llamadores del API son servicios (el helpdesk), no usuarios finales.
type AuthContext struct {
	TenantID TenantID `json:"tenant_id"`
	Subject  string   `json:"subject"`
	Scopes   []string `json:"scopes,omitempty"`
}

// IsValid verifica si el AuthContext es válido
func (a *AuthContext) IsValid() bool {
	return !a.TenantID.IsEmpty() && a.Subject != ""
}

// HasScope verifica si el token incluye el scope dado
func (a *AuthContext) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// ============================================================================
// Context Keys - Claves para context.Context
// ============================================================================

type ContextKey string

const (
	// AuthContextKey es la clave para almacenar AuthContext en context.Context
	AuthContextKey ContextKey = "auth_context"

	// TenantContextKey es la clave para almacenar TenantID en context.Context
	TenantContextKey ContextKey = "tenant_id"

	// RequestIDKey es la clave para almacenar el ID de la petición
	RequestIDKey ContextKey = "request_id"
)
