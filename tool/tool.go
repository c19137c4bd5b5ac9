package tool

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/ptrx"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ============================================================================
// Tool Entity
// ============================================================================

// Tool representa una acción externa (API) que un flujo puede invocar
type Tool struct {
	ID             kernel.ToolID   `db:"id" json:"id"`
	TenantID       kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Type           ToolType        `db:"type" json:"type"`
	Config         ToolConfig      `db:"config" json:"config"`
	ResponseSchema ResponseSchema  `db:"response_schema" json:"response_schema"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// ToolType define los tipos de tools disponibles
type ToolType string

const (
	ToolTypeHTTP ToolType = "HTTP"
	// ToolTypeStatic responde siempre el JSON configurado (mocks / respuestas fijas)
	ToolTypeStatic ToolType = "STATIC"
)

// ToolConfig configuración específica por tipo de tool. Los strings admiten
// tokens {variable}.
type ToolConfig struct {
	// HTTP
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    string            `json:"body,omitempty"`
	Timeout *int              `json:"timeout,omitempty"` // seconds

	// Static
	Response string `json:"response,omitempty"`
}

// GetMethod método HTTP, GET por defecto
func (c ToolConfig) GetMethod() string {
	if c.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(c.Method)
}

// GetTimeout timeout propio del tool, acotado por el límite del motor
func (c ToolConfig) GetTimeout(limit time.Duration) time.Duration {
	seconds := ptrx.IntValueOr(c.Timeout, 0)
	if seconds <= 0 {
		return limit
	}
	timeout := time.Duration(seconds) * time.Second
	if limit > 0 && timeout > limit {
		return limit
	}
	return timeout
}

// ============================================================================
// Response Schema
// ============================================================================

// ResponseSchema declara qué propiedades de la respuesta se guardan como atributos
type ResponseSchema struct {
	Properties map[string]PropertyBinding `json:"properties,omitempty"`
}

// PropertyBinding ruta (gjson) dentro de la respuesta y atributo destino
type PropertyBinding struct {
	// Path ruta gjson; vacío = nombre de la propiedad
	Path string `json:"path,omitempty"`
	// Attribute atributo de sesión destino; vacío = nombre de la propiedad
	Attribute string `json:"attribute,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Binding propiedad resuelta lista para mapear
type Binding struct {
	Property  string
	Path      string
	Attribute string
	Type      string
}

// Bindings propiedades ordenadas por nombre (orden estable de atributos)
func (s ResponseSchema) Bindings() []Binding {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	bindings := make([]Binding, 0, len(names))
	for _, name := range names {
		prop := s.Properties[name]
		b := Binding{Property: name, Path: prop.Path, Attribute: prop.Attribute, Type: prop.Type}
		if b.Path == "" {
			b.Path = name
		}
		if b.Attribute == "" {
			b.Attribute = name
		}
		bindings = append(bindings, b)
	}
	return bindings
}

// ============================================================================
// Domain Methods - Tool
// ============================================================================

// IsValid verifica si el tool es válido
func (t *Tool) IsValid() bool {
	if t.Name == "" || t.TenantID.IsEmpty() {
		return false
	}
	switch t.Type {
	case ToolTypeHTTP:
		return t.Config.URL != ""
	case ToolTypeStatic:
		return true
	}
	return false
}

// UpdateConfig actualiza la configuración del tool
func (t *Tool) UpdateConfig(config ToolConfig) {
	t.Config = config
	t.UpdatedAt = time.Now()
}
