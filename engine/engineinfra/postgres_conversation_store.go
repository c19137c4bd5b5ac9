package engineinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresConversationStore acceso del motor a conversaciones, usuarios e
// items. Las tablas pertenecen a la plataforma de mensajería.
type PostgresConversationStore struct {
	db *sqlx.DB
}

var _ engine.ConversationStore = (*PostgresConversationStore)(nil)

func NewPostgresConversationStore(db *sqlx.DB) *PostgresConversationStore {
	return &PostgresConversationStore{db: db}
}

// ============================================================================
// Rows
// ============================================================================

type dbConversation struct {
	ID               string          `db:"id"`
	TenantID         string          `db:"tenant_id"`
	AIAgentID        sql.NullString  `db:"ai_agent_id"`
	UserID           string          `db:"user_id"`
	Subject          string          `db:"subject"`
	Status           string          `db:"status"`
	GroupID          sql.NullString  `db:"group_id"`
	AssigneeID       sql.NullString  `db:"assignee_id"`
	Visit            json.RawMessage `db:"visit"`
	CustomAttributes json.RawMessage `db:"custom_attributes"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

type dbEndUser struct {
	ID               string          `db:"id"`
	TenantID         string          `db:"tenant_id"`
	Name             string          `db:"name"`
	Email            string          `db:"email"`
	Phone            string          `db:"phone"`
	CustomAttributes json.RawMessage `db:"custom_attributes"`
	CreatedAt        time.Time       `db:"created_at"`
}

type dbItem struct {
	ID             string          `db:"id"`
	ConversationID string          `db:"conversation_id"`
	Type           string          `db:"type"`
	Author         string          `db:"author"`
	Body           string          `db:"body"`
	Data           json.RawMessage `db:"data"`
	Attachments    pq.StringArray  `db:"attachments"`
	CreatedAt      time.Time       `db:"created_at"`
}

const itemColumns = `id, conversation_id, type, author, body, data, attachments, created_at`

func toDomainConversation(c *dbConversation) (*engine.Conversation, error) {
	conv := &engine.Conversation{
		ID:         kernel.ConversationID(c.ID),
		TenantID:   kernel.TenantID(c.TenantID),
		AIAgentID:  kernel.AIAgentID(c.AIAgentID.String),
		UserID:     kernel.UserID(c.UserID),
		Subject:    c.Subject,
		Status:     engine.ConversationStatus(c.Status),
		GroupID:    kernel.GroupID(c.GroupID.String),
		AssigneeID: kernel.AgentID(c.AssigneeID.String),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if len(c.Visit) > 0 && string(c.Visit) != "null" {
		if err := json.Unmarshal(c.Visit, &conv.Visit); err != nil {
			return nil, fmt.Errorf("failed to unmarshal visit: %w", err)
		}
	}
	if len(c.CustomAttributes) > 0 && string(c.CustomAttributes) != "null" {
		if err := json.Unmarshal(c.CustomAttributes, &conv.CustomAttributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom attributes: %w", err)
		}
	}
	return conv, nil
}

func toDomainEndUser(u *dbEndUser) (*engine.EndUser, error) {
	user := &engine.EndUser{
		ID:        kernel.UserID(u.ID),
		TenantID:  kernel.TenantID(u.TenantID),
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
	if len(u.CustomAttributes) > 0 && string(u.CustomAttributes) != "null" {
		if err := json.Unmarshal(u.CustomAttributes, &user.CustomAttributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom attributes: %w", err)
		}
	}
	return user, nil
}

func toDBItem(item engine.ConversationItem) *dbItem {
	data := item.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return &dbItem{
		ID:             item.ID.String(),
		ConversationID: item.ConversationID.String(),
		Type:           string(item.Type),
		Author:         string(item.Author),
		Body:           item.Body,
		Data:           data,
		Attachments:    pq.StringArray(item.Attachments),
		CreatedAt:      item.CreatedAt,
	}
}

func toDomainItem(i *dbItem) engine.ConversationItem {
	item := engine.ConversationItem{
		ID:             kernel.MessageID(i.ID),
		ConversationID: kernel.ConversationID(i.ConversationID),
		Type:           engine.ItemType(i.Type),
		Author:         engine.Author(i.Author),
		Body:           i.Body,
		Attachments:    []string(i.Attachments),
		CreatedAt:      i.CreatedAt,
	}
	if len(i.Data) > 0 && string(i.Data) != "null" {
		item.Data = i.Data
	}
	return item
}

// ============================================================================
// Reads
// ============================================================================

func (s *PostgresConversationStore) FindConversation(ctx context.Context, id kernel.ConversationID) (*engine.Conversation, error) {
	query := `
		SELECT id, tenant_id, ai_agent_id, user_id, subject, status, group_id,
			assignee_id, visit, custom_attributes, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	var row dbConversation
	if err := s.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrConversationNotFound().WithDetail("conversation_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to get conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	conv, err := toDomainConversation(&row)
	if err != nil {
		return nil, errx.Wrap(err, "failed to convert conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return conv, nil
}

func (s *PostgresConversationStore) FindUser(ctx context.Context, id kernel.UserID) (*engine.EndUser, error) {
	query := `
		SELECT id, tenant_id, name, email, phone, custom_attributes, created_at
		FROM end_users
		WHERE id = $1`

	var row dbEndUser
	if err := s.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrUserNotFound().WithDetail("user_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to get user", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}

	user, err := toDomainEndUser(&row)
	if err != nil {
		return nil, errx.Wrap(err, "failed to convert user", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}
	return user, nil
}

func (s *PostgresConversationStore) FindItem(ctx context.Context, id kernel.MessageID) (*engine.ConversationItem, error) {
	query := `SELECT ` + itemColumns + ` FROM conversation_items WHERE id = $1`

	var row dbItem
	if err := s.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrItemNotFound().WithDetail("item_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to get conversation item", errx.TypeInternal).
			WithDetail("item_id", id.String())
	}

	item := toDomainItem(&row)
	return &item, nil
}

func (s *PostgresConversationStore) LastItems(ctx context.Context, conversationID kernel.ConversationID, n int) ([]engine.ConversationItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM (
			SELECT ` + itemColumns + `
			FROM conversation_items
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC`

	var rows []dbItem
	if err := s.db.SelectContext(ctx, &rows, query, conversationID.String(), n); err != nil {
		return nil, errx.Wrap(err, "failed to list conversation items", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}

	items := make([]engine.ConversationItem, 0, len(rows))
	for i := range rows {
		items = append(items, toDomainItem(&rows[i]))
	}
	return items, nil
}

// ============================================================================
// Writes
// ============================================================================

func (s *PostgresConversationStore) AppendItem(ctx context.Context, item *engine.ConversationItem) error {
	query := `
		INSERT INTO conversation_items (` + itemColumns + `)
		VALUES (:id, :conversation_id, :type, :author, :body, :data, :attachments, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, toDBItem(*item)); err != nil {
		return errx.Wrap(err, "failed to append conversation item", errx.TypeInternal).
			WithDetail("conversation_id", item.ConversationID.String()).
			WithDetail("item_id", item.ID.String())
	}
	return nil
}

func (s *PostgresConversationStore) UpdateGroup(ctx context.Context, conversationID kernel.ConversationID, groupID kernel.GroupID) error {
	query := `UPDATE conversations SET group_id = $2, updated_at = NOW() WHERE id = $1`
	return s.exec(ctx, query, conversationID, "failed to update conversation group", conversationID.String(), groupID.String())
}

func (s *PostgresConversationStore) Close(ctx context.Context, conversationID kernel.ConversationID) error {
	query := `UPDATE conversations SET status = $2, updated_at = NOW() WHERE id = $1`
	return s.exec(ctx, query, conversationID, "failed to close conversation", conversationID.String(), string(engine.ConversationStatusClosed))
}

func (s *PostgresConversationStore) RecordEvent(ctx context.Context, conversationID kernel.ConversationID, event string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errx.Wrap(err, "failed to marshal event data", errx.TypeInternal).
			WithDetail("event", event)
	}

	query := `
		INSERT INTO conversation_events (id, conversation_id, event, data, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), conversationID.String(), event, payload); err != nil {
		return errx.Wrap(err, "failed to record conversation event", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String()).
			WithDetail("event", event)
	}
	return nil
}

func (s *PostgresConversationStore) exec(ctx context.Context, query string, conversationID kernel.ConversationID, msg string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errx.Wrap(err, msg, errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return engine.ErrConversationNotFound().WithDetail("conversation_id", conversationID.String())
	}
	return nil
}
