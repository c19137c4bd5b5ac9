package engine

import (
	"encoding/json"
	"time"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/google/uuid"
)

// ============================================================================
// Conversation (entidad externa, leída y actualizada vía ConversationStore)
// ============================================================================

type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "open"
	ConversationStatusClosed ConversationStatus = "closed"
)

// PageVisit hechos sintéticos de la página desde donde escribe el usuario
type PageVisit struct {
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

type Conversation struct {
	ID               kernel.ConversationID `json:"id"`
	TenantID         kernel.TenantID       `json:"tenant_id"`
	AIAgentID        kernel.AIAgentID      `json:"ai_agent_id"`
	UserID           kernel.UserID         `json:"user_id"`
	Subject          string                `json:"subject"`
	Status           ConversationStatus    `json:"status"`
	GroupID          kernel.GroupID        `json:"group_id,omitempty"`
	AssigneeID       kernel.AgentID        `json:"assignee_id,omitempty"`
	Visit            PageVisit             `json:"visit"`
	CustomAttributes map[string]any        `json:"custom_attributes,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func (c *Conversation) IsClosed() bool {
	return c.Status == ConversationStatusClosed
}

// IsWithHuman la conversación ya fue transferida a un agente humano
func (c *Conversation) IsWithHuman() bool {
	return !c.AssigneeID.IsEmpty()
}

// BotCanReply el AI agent solo actúa en conversaciones abiertas y sin asignar
func (c *Conversation) BotCanReply() bool {
	return !c.IsClosed() && !c.IsWithHuman() && !c.AIAgentID.IsEmpty()
}

// EndUser el contacto que conversa con el bot
type EndUser struct {
	ID               kernel.UserID   `json:"id"`
	TenantID         kernel.TenantID `json:"tenant_id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	CustomAttributes map[string]any  `json:"custom_attributes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ============================================================================
// ConversationItem
// ============================================================================

type ItemType string

const (
	ItemTypeMessage            ItemType = "message"
	ItemTypeCards              ItemType = "cards"
	ItemTypeArticles           ItemType = "articles"
	ItemTypeCollectDetailsForm ItemType = "collectDetailsForm"
	ItemTypeSubmittedFormData  ItemType = "submittedFormData"
)

type Author string

const (
	AuthorBot   Author = "bot"
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
)

// ConversationItem mensaje (o mensaje estructurado) de la conversación
type ConversationItem struct {
	ID             kernel.MessageID      `json:"id"`
	ConversationID kernel.ConversationID `json:"conversation_id"`
	Type           ItemType              `json:"type"`
	Author         Author                `json:"author"`
	Body           string                `json:"body"`
	Data           json.RawMessage       `json:"data,omitempty"`
	Attachments    []string              `json:"attachments,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// NewBotItem item emitido por el bot; data se serializa si no es nil
func NewBotItem(convID kernel.ConversationID, typ ItemType, body string, data any) (ConversationItem, error) {
	item := ConversationItem{
		ID:             kernel.NewMessageID(uuid.NewString()),
		ConversationID: convID,
		Type:           typ,
		Author:         AuthorBot,
		Body:           body,
		CreatedAt:      time.Now(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return ConversationItem{}, err
		}
		if string(raw) != "null" {
			item.Data = raw
		}
	}
	return item, nil
}

func (i *ConversationItem) IsFromUser() bool {
	return i.Author == AuthorUser
}

// DataMap decodifica data como objeto (vacío si no lo es)
func (i *ConversationItem) DataMap() map[string]any {
	out := map[string]any{}
	if len(i.Data) == 0 {
		return out
	}
	_ = json.Unmarshal(i.Data, &out)
	return out
}

// Article artículo de la base de conocimiento
type Article struct {
	ID       kernel.ArticleID `json:"id" db:"id"`
	TenantID kernel.TenantID  `json:"tenant_id" db:"tenant_id"`
	Title    string           `json:"title" db:"title"`
	Summary  string           `json:"summary" db:"summary"`
	URL      string           `json:"url" db:"url"`
	ImageURL string           `json:"image_url" db:"image_url"`
}

// Audit events
const (
	EventClosedByAIAgent      = "closed_by_ai_agent"
	EventTransferredByAIAgent = "transferred_by_ai_agent"
)
