package tool

import (
	"context"
	"encoding/json"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// ToolRepository define el contrato para persistencia de tools
type ToolRepository interface {
	Save(ctx context.Context, tool Tool) error
	FindByID(ctx context.Context, id kernel.ToolID, tenantID kernel.TenantID) (*Tool, error)
}

// ============================================================================
// Executor Interfaces
// ============================================================================

// Renderer sustituye tokens {variable} con el contexto de la conversación
type Renderer interface {
	Execute(template string) string
}

// ToolExecutor ejecuta tools según su tipo. Devuelve la respuesta JSON o nil
// si la respuesta vino vacía.
type ToolExecutor interface {
	Execute(ctx context.Context, tool *Tool, renderer Renderer) (json.RawMessage, error)
}
