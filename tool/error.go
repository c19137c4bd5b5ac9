package tool

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("TOOL")

// ============================================================================
// Error Codes
// ============================================================================

var (
	// Tool errors
	CodeToolNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tool no encontrado")
	CodeInvalidToolType   = ErrRegistry.Register("INVALID_TYPE", errx.TypeValidation, http.StatusBadRequest, "Tipo de tool inválido")
	CodeInvalidToolConfig = ErrRegistry.Register("INVALID_CONFIG", errx.TypeValidation, http.StatusBadRequest, "Configuración de tool inválida")
	CodeToolInactive      = ErrRegistry.Register("TOOL_INACTIVE", errx.TypeBusiness, http.StatusForbidden, "Tool está inactivo")

	// Execution errors
	CodeExecutionFailed = ErrRegistry.Register("EXECUTION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Ejecución de tool falló")
	CodeTimeoutExceeded = ErrRegistry.Register("TIMEOUT_EXCEEDED", errx.TypeInternal, http.StatusRequestTimeout, "Timeout excedido")

	// HTTP Tool errors
	CodeHTTPRequestFailed = ErrRegistry.Register("HTTP_REQUEST_FAILED", errx.TypeExternal, http.StatusBadGateway, "HTTP request falló")
	CodeHTTPInvalidURL    = ErrRegistry.Register("HTTP_INVALID_URL", errx.TypeValidation, http.StatusBadRequest, "URL inválida")
	CodeInvalidResponse   = ErrRegistry.Register("INVALID_RESPONSE", errx.TypeExternal, http.StatusBadGateway, "Respuesta del tool no es JSON")
)

// ============================================================================
// Error Constructor Functions
// ============================================================================

func ErrToolNotFound() *errx.Error {
	return ErrRegistry.New(CodeToolNotFound)
}

func ErrInvalidToolType() *errx.Error {
	return ErrRegistry.New(CodeInvalidToolType)
}

func ErrInvalidToolConfig() *errx.Error {
	return ErrRegistry.New(CodeInvalidToolConfig)
}

func ErrToolInactive() *errx.Error {
	return ErrRegistry.New(CodeToolInactive)
}

func ErrExecutionFailed() *errx.Error {
	return ErrRegistry.New(CodeExecutionFailed)
}

func ErrTimeoutExceeded() *errx.Error {
	return ErrRegistry.New(CodeTimeoutExceeded)
}

func ErrHTTPRequestFailed() *errx.Error {
	return ErrRegistry.New(CodeHTTPRequestFailed)
}

func ErrHTTPInvalidURL() *errx.Error {
	return ErrRegistry.New(CodeHTTPInvalidURL)
}

func ErrInvalidResponse() *errx.Error {
	return ErrRegistry.New(CodeInvalidResponse)
}
