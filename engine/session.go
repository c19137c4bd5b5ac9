package engine

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ============================================================================
// Session Entity
// ============================================================================

type SessionStatus string

const (
	SessionStatusActive              SessionStatus = "active"
	SessionStatusWaitingForUserInput SessionStatus = "waiting_for_user_input"
)

// AttributeType tipo declarado de un atributo de sesión
type AttributeType string

const (
	AttributeTypeString  AttributeType = "string"
	AttributeTypeNumber  AttributeType = "number"
	AttributeTypeBoolean AttributeType = "boolean"
	AttributeTypeDate    AttributeType = "date"
	AttributeTypeJSON    AttributeType = "json"
)

// Attribute valor tipado recolectado durante la conversación
type Attribute struct {
	Name  string        `json:"name"`
	Type  AttributeType `json:"type"`
	Value any           `json:"value"`
}

// UnmarshalJSON restaura el tipo Go del valor según el tipo declarado
func (a *Attribute) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Type  AttributeType   `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	a.Name, a.Type, a.Value = raw.Name, raw.Type, nil
	if len(raw.Value) == 0 || string(raw.Value) == "null" {
		return nil
	}

	if raw.Type == AttributeTypeDate {
		var t time.Time
		if err := json.Unmarshal(raw.Value, &t); err == nil {
			a.Value = t
			return nil
		}
	}
	return json.Unmarshal(raw.Value, &a.Value)
}

// Attributes mapa ordenado por primera inserción
type Attributes []Attribute

// Set reemplaza en sitio o agrega al final
func (a *Attributes) Set(name string, typ AttributeType, value any) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Type = typ
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Name: name, Type: typ, Value: value})
}

func (a Attributes) Get(name string) (any, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for _, attr := range a {
		names = append(names, attr.Name)
	}
	return names
}

// PendingButton etiqueta mostrada por un nodo buttons / dynamicButtons
type PendingButton struct {
	Label        string `json:"label"`
	TargetNodeID string `json:"targetNodeId,omitempty"`
}

// Session el SessionContext de una conversación con un AI agent
type Session struct {
	ConversationID kernel.ConversationID      `json:"conversation_id"`
	AIAgentID      kernel.AIAgentID           `json:"ai_agent_id"`
	TenantID       kernel.TenantID            `json:"tenant_id"`
	ActiveFlowID   kernel.FlowID              `json:"active_flow_id"`
	CurrentNodeID  *string                    `json:"current_node_id"`
	Status         SessionStatus              `json:"status"`
	Attributes     Attributes                 `json:"attributes"`
	ToolResponses  map[string]json.RawMessage `json:"tool_responses"`
	PendingButtons []PendingButton            `json:"pending_buttons,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// NewSession crea la sesión en la primera interacción del bot
func NewSession(conv *Conversation, flowID kernel.FlowID) *Session {
	now := time.Now()
	return &Session{
		ConversationID: conv.ID,
		AIAgentID:      conv.AIAgentID,
		TenantID:       conv.TenantID,
		ActiveFlowID:   flowID,
		Status:         SessionStatusActive,
		Attributes:     Attributes{},
		ToolResponses:  map[string]json.RawMessage{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ============================================================================
// Domain Methods - Session
// ============================================================================

func (s *Session) IsWaiting() bool {
	return s.Status == SessionStatusWaitingForUserInput
}

// IsWaitingAt indica si la sesión está suspendida justo en nodeID
func (s *Session) IsWaitingAt(nodeID string) bool {
	return s.IsWaiting() && s.CurrentNodeID != nil && *s.CurrentNodeID == nodeID
}

func (s *Session) HasPendingNode() bool {
	return s.CurrentNodeID != nil && *s.CurrentNodeID != ""
}

// MoveTo avanza el cursor; cualquier nodo que no espera deja status Active
func (s *Session) MoveTo(nodeID string) {
	s.CurrentNodeID = &nodeID
	s.Status = SessionStatusActive
	s.touch()
}

// WaitForUserInput suspende la sesión en nodeID
func (s *Session) WaitForUserInput(nodeID string) {
	s.CurrentNodeID = &nodeID
	s.Status = SessionStatusWaitingForUserInput
	s.touch()
}

// ClearCursor deja la sesión sin nodo pendiente
func (s *Session) ClearCursor() {
	s.CurrentNodeID = nil
	s.Status = SessionStatusActive
	s.PendingButtons = nil
	s.touch()
}

// SwitchFlow reemplaza el flujo activo (GoToFlow)
func (s *Session) SwitchFlow(flowID kernel.FlowID) {
	s.ActiveFlowID = flowID
	s.CurrentNodeID = nil
	s.Status = SessionStatusActive
	s.PendingButtons = nil
	s.touch()
}

func (s *Session) SetAttribute(name string, typ AttributeType, value any) {
	s.Attributes.Set(name, typ, value)
	s.touch()
}

func (s *Session) CacheToolResponse(key string, response json.RawMessage) {
	if s.ToolResponses == nil {
		s.ToolResponses = map[string]json.RawMessage{}
	}
	s.ToolResponses[key] = response
	s.touch()
}

func (s *Session) ToolResponse(key string) (json.RawMessage, bool) {
	resp, ok := s.ToolResponses[key]
	return resp, ok
}

// Clone copia profunda para poder restaurar la sesión si un nodo falla
func (s *Session) Clone() *Session {
	clone := *s
	if s.CurrentNodeID != nil {
		id := *s.CurrentNodeID
		clone.CurrentNodeID = &id
	}
	clone.Attributes = slices.Clone(s.Attributes)
	clone.ToolResponses = maps.Clone(s.ToolResponses)
	clone.PendingButtons = slices.Clone(s.PendingButtons)
	return &clone
}

// CurrentNode valor del cursor ("" si no hay)
func (s *Session) CurrentNode() string {
	if s.CurrentNodeID == nil {
		return ""
	}
	return *s.CurrentNodeID
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}
