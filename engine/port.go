package engine

import (
	"context"
	"time"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// FlowRepository persistencia de flujos
type FlowRepository interface {
	Save(ctx context.Context, flow Flow) error
	FindByID(ctx context.Context, id kernel.FlowID, tenantID kernel.TenantID) (*Flow, error)
	// FindDefault flujo por defecto activo del AI agent
	FindDefault(ctx context.Context, tenantID kernel.TenantID, aiAgentID kernel.AIAgentID) (*Flow, error)
}

// SessionRepository persistencia del SessionContext
type SessionRepository interface {
	Find(ctx context.Context, conversationID kernel.ConversationID, aiAgentID kernel.AIAgentID) (*Session, error)
	Save(ctx context.Context, session Session) error
	List(ctx context.Context, req SessionListRequest) (SessionListResponse, error)
	CountWaiting(ctx context.Context) (int, error)
}

// ============================================================================
// Collaborators (fuera del motor)
// ============================================================================

// ConversationStore lectura/escritura de conversaciones, usuarios y mensajes
type ConversationStore interface {
	FindConversation(ctx context.Context, id kernel.ConversationID) (*Conversation, error)
	FindUser(ctx context.Context, id kernel.UserID) (*EndUser, error)
	FindItem(ctx context.Context, id kernel.MessageID) (*ConversationItem, error)
	// LastItems últimos n items en orden cronológico
	LastItems(ctx context.Context, conversationID kernel.ConversationID, n int) ([]ConversationItem, error)
	AppendItem(ctx context.Context, item *ConversationItem) error
	UpdateGroup(ctx context.Context, conversationID kernel.ConversationID, groupID kernel.GroupID) error
	Close(ctx context.Context, conversationID kernel.ConversationID) error
	RecordEvent(ctx context.Context, conversationID kernel.ConversationID, event string, data map[string]any) error
}

// AgentAssigner asignación a agentes humanos
type AgentAssigner interface {
	AssignTo(ctx context.Context, conversationID kernel.ConversationID, agentID kernel.AgentID) error
	// AssignFirstAvailable devuelve el agente elegido (vacío si nadie está disponible)
	AssignFirstAvailable(ctx context.Context, conversationID kernel.ConversationID, groupID kernel.GroupID) (kernel.AgentID, error)
}

// TagStore resolución y asignación de tags (solo lookup, nunca crea)
type TagStore interface {
	FindIDsByNames(ctx context.Context, tenantID kernel.TenantID, names []string) ([]kernel.TagID, error)
	AttachToConversation(ctx context.Context, conversationID kernel.ConversationID, tagIDs []kernel.TagID) error
	AttachToUser(ctx context.Context, userID kernel.UserID, tagIDs []kernel.TagID) error
}

// ArticleStore artículos de la base de conocimiento
type ArticleStore interface {
	FindByIDs(ctx context.Context, tenantID kernel.TenantID, ids []kernel.ArticleID) ([]Article, error)
}

// EventPublisher notificación fire-and-forget hacia la capa de entrega
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, tenantID kernel.TenantID, item ConversationItem) error
}

// ============================================================================
// Coordination
// ============================================================================

// UnlockFunc libera un lock adquirido
type UnlockFunc func(ctx context.Context) error

// Locker lock distribuido por clave
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// IdempotencyStore claves de turnos ya consumidos
type IdempotencyStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// ============================================================================
// Processor Interface
// ============================================================================

// TurnProcessor punto de entrada único del motor
type TurnProcessor interface {
	RunTurn(ctx context.Context, conversationID kernel.ConversationID, triggeringMessageID *kernel.MessageID) (*TurnResult, error)
}
