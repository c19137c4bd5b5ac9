package replacer

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/tool"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// tokenPattern {identifier}; el identificador admite rutas gjson simples
var tokenPattern = regexp.MustCompile(`\{([A-Za-z0-9_.#\-]+)\}`)

// Data contexto enlazado para la sustitución
type Data struct {
	Conversation *engine.Conversation
	User         *engine.EndUser
	Session      *engine.Session
	Tool         *tool.Tool
	ToolResponse json.RawMessage
}

// Replacer sustituye tokens {variable}. Es una función pura de Data.
type Replacer struct {
	data Data
}

var _ tool.Renderer = (*Replacer)(nil)

func New(data Data) *Replacer {
	return &Replacer{data: data}
}

// WithToolResponse copia del replacer enlazada a otra respuesta de tool
func (r *Replacer) WithToolResponse(t *tool.Tool, response json.RawMessage) *Replacer {
	data := r.data
	data.Tool = t
	data.ToolResponse = response
	return &Replacer{data: data}
}

// Execute sustituye en una sola pasada; los tokens sin valor quedan literales
func (r *Replacer) Execute(template string) string {
	return r.render(template, -1)
}

// ExecuteAt como Execute, pero si un valor es una colección usa su elemento index
func (r *Replacer) ExecuteAt(template string, index int) string {
	return r.render(template, index)
}

// Lookup resuelve un identificador sin formatear
func (r *Replacer) Lookup(identifier string) (any, bool) {
	return r.resolve(identifier)
}

func (r *Replacer) render(template string, index int) string {
	if !strings.Contains(template, "{") {
		return template
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		identifier := token[1 : len(token)-1]
		value, ok := r.resolve(identifier)
		if !ok {
			return token
		}
		if index >= 0 {
			if value, ok = pick(value, index); !ok {
				return token
			}
		}
		return Format(value)
	})
}

// ============================================================================
// Resolution
// ============================================================================

func (r *Replacer) resolve(identifier string) (any, bool) {
	namespace, rest, namespaced := strings.Cut(identifier, ".")
	if namespaced && rest != "" {
		switch strings.ToLower(namespace) {
		case "user":
			return r.userValue(rest)
		case "conversation":
			return r.conversationValue(rest)
		case "attribute", "session":
			return r.sessionValue(rest)
		case "response":
			return r.responseValue(rest)
		case "tool":
			if path, ok := strings.CutPrefix(rest, "response."); ok {
				return r.responseValue(path)
			}
			return r.toolValue(rest)
		}
	}

	// Identificador sin namespace: sesión, usuario, conversación, respuesta
	if v, ok := r.sessionValue(identifier); ok {
		return v, true
	}
	if v, ok := r.userValue(identifier); ok {
		return v, true
	}
	if v, ok := r.conversationValue(identifier); ok {
		return v, true
	}
	return r.responseValue(identifier)
}

func (r *Replacer) sessionValue(name string) (any, bool) {
	if r.data.Session == nil {
		return nil, false
	}
	return r.data.Session.Attributes.Get(name)
}

func (r *Replacer) userValue(field string) (any, bool) {
	u := r.data.User
	if u == nil {
		return nil, false
	}
	switch strings.ToLower(field) {
	case "id":
		return u.ID.String(), true
	case "name":
		return u.Name, u.Name != ""
	case "firstname", "first_name":
		if parts := strings.Fields(u.Name); len(parts) > 0 {
			return parts[0], true
		}
		return nil, false
	case "email":
		return u.Email, u.Email != ""
	case "phone":
		return u.Phone, u.Phone != ""
	case "signedup", "created_at":
		return u.CreatedAt, !u.CreatedAt.IsZero()
	}
	return customValue(u.CustomAttributes, field)
}

func (r *Replacer) conversationValue(field string) (any, bool) {
	c := r.data.Conversation
	if c == nil {
		return nil, false
	}
	switch strings.ToLower(field) {
	case "id":
		return c.ID.String(), true
	case "subject":
		return c.Subject, c.Subject != ""
	case "status":
		return string(c.Status), c.Status != ""
	case "url", "pageurl":
		return c.Visit.URL, c.Visit.URL != ""
	case "pagetitle":
		return c.Visit.Title, c.Visit.Title != ""
	}
	return customValue(c.CustomAttributes, field)
}

func (r *Replacer) toolValue(field string) (any, bool) {
	t := r.data.Tool
	if t == nil {
		return nil, false
	}
	switch strings.ToLower(field) {
	case "name":
		return t.Name, true
	case "id":
		return t.ID.String(), true
	case "description":
		return t.Description, t.Description != ""
	}
	return nil, false
}

func (r *Replacer) responseValue(path string) (any, bool) {
	if len(r.data.ToolResponse) == 0 {
		return nil, false
	}
	res := gjson.GetBytes(r.data.ToolResponse, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

func customValue(attrs map[string]any, name string) (any, bool) {
	if attrs == nil {
		return nil, false
	}
	if v, ok := attrs[name]; ok {
		return v, true
	}
	for k, v := range attrs {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// ============================================================================
// Collections & formatting
// ============================================================================

// pick elemento index de una colección; los valores escalares se devuelven tal cual
func pick(value any, index int) (any, bool) {
	switch v := value.(type) {
	case []any:
		if index < len(v) {
			return v[index], true
		}
		return nil, false
	case []string:
		if index < len(v) {
			return v[index], true
		}
		return nil, false
	case string:
		// atributos tipo lista se guardan JSON-encoded
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") && gjson.Valid(trimmed) {
			arr := gjson.Parse(trimmed).Array()
			if index < len(arr) {
				return arr[index].Value(), true
			}
			return nil, false
		}
	}
	return value, true
}

// Format representación textual de un valor resuelto
func Format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case json.RawMessage:
		return string(v)
	case []any, map[string]any, []string:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	b, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(b)
}
