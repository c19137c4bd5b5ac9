package engineinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

type PostgresSessionRepository struct {
	db *sqlx.DB
}

var _ engine.SessionRepository = (*PostgresSessionRepository)(nil)

func NewPostgresSessionRepository(db *sqlx.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

// dbSession is an intermediate struct for database operations
type dbSession struct {
	ConversationID string          `db:"conversation_id"`
	AIAgentID      string          `db:"ai_agent_id"`
	TenantID       string          `db:"tenant_id"`
	ActiveFlowID   string          `db:"active_flow_id"`
	CurrentNodeID  sql.NullString  `db:"current_node_id"`
	Status         string          `db:"status"`
	Attributes     json.RawMessage `db:"attributes"`
	ToolResponses  json.RawMessage `db:"tool_responses"`
	PendingButtons json.RawMessage `db:"pending_buttons"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const sessionColumns = `
	conversation_id, ai_agent_id, tenant_id, active_flow_id, current_node_id,
	status, attributes, tool_responses, pending_buttons, created_at, updated_at`

// toDBSession converts domain Session to dbSession
func toDBSession(session engine.Session) (*dbSession, error) {
	attributesJSON := []byte("[]")
	if len(session.Attributes) > 0 {
		var err error
		attributesJSON, err = json.Marshal(session.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attributes: %w", err)
		}
	}

	responsesJSON := []byte("{}")
	if len(session.ToolResponses) > 0 {
		var err error
		responsesJSON, err = json.Marshal(session.ToolResponses)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool responses: %w", err)
		}
	}

	buttonsJSON := []byte("[]")
	if len(session.PendingButtons) > 0 {
		var err error
		buttonsJSON, err = json.Marshal(session.PendingButtons)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal pending buttons: %w", err)
		}
	}

	return &dbSession{
		ConversationID: session.ConversationID.String(),
		AIAgentID:      session.AIAgentID.String(),
		TenantID:       session.TenantID.String(),
		ActiveFlowID:   session.ActiveFlowID.String(),
		CurrentNodeID: sql.NullString{
			String: session.CurrentNode(),
			Valid:  session.HasPendingNode(),
		},
		Status:         string(session.Status),
		Attributes:     attributesJSON,
		ToolResponses:  responsesJSON,
		PendingButtons: buttonsJSON,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
	}, nil
}

// toDomainSession converts dbSession to domain Session
func toDomainSession(dbSess *dbSession) (*engine.Session, error) {
	attributes := engine.Attributes{}
	if len(dbSess.Attributes) > 0 && string(dbSess.Attributes) != "null" {
		if err := json.Unmarshal(dbSess.Attributes, &attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}

	responses := map[string]json.RawMessage{}
	if len(dbSess.ToolResponses) > 0 && string(dbSess.ToolResponses) != "null" {
		if err := json.Unmarshal(dbSess.ToolResponses, &responses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool responses: %w", err)
		}
	}

	var buttons []engine.PendingButton
	if len(dbSess.PendingButtons) > 0 && string(dbSess.PendingButtons) != "null" {
		if err := json.Unmarshal(dbSess.PendingButtons, &buttons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending buttons: %w", err)
		}
	}

	session := &engine.Session{
		ConversationID: kernel.ConversationID(dbSess.ConversationID),
		AIAgentID:      kernel.AIAgentID(dbSess.AIAgentID),
		TenantID:       kernel.TenantID(dbSess.TenantID),
		ActiveFlowID:   kernel.FlowID(dbSess.ActiveFlowID),
		Status:         engine.SessionStatus(dbSess.Status),
		Attributes:     attributes,
		ToolResponses:  responses,
		PendingButtons: buttons,
		CreatedAt:      dbSess.CreatedAt,
		UpdatedAt:      dbSess.UpdatedAt,
	}
	if dbSess.CurrentNodeID.Valid && dbSess.CurrentNodeID.String != "" {
		current := dbSess.CurrentNodeID.String
		session.CurrentNodeID = &current
	}
	return session, nil
}

// Save inserta o reemplaza la sesión (una por conversación y AI agent)
func (r *PostgresSessionRepository) Save(ctx context.Context, session engine.Session) error {
	dbSess, err := toDBSession(session)
	if err != nil {
		return errx.Wrap(err, "failed to convert session", errx.TypeInternal).
			WithDetail("conversation_id", session.ConversationID.String())
	}

	query := `
		INSERT INTO ai_agent_sessions (
			conversation_id, ai_agent_id, tenant_id, active_flow_id, current_node_id,
			status, attributes, tool_responses, pending_buttons, created_at, updated_at
		) VALUES (
			:conversation_id, :ai_agent_id, :tenant_id, :active_flow_id, :current_node_id,
			:status, :attributes, :tool_responses, :pending_buttons, :created_at, :updated_at
		)
		ON CONFLICT (conversation_id, ai_agent_id) DO UPDATE SET
			active_flow_id = EXCLUDED.active_flow_id,
			current_node_id = EXCLUDED.current_node_id,
			status = EXCLUDED.status,
			attributes = EXCLUDED.attributes,
			tool_responses = EXCLUDED.tool_responses,
			pending_buttons = EXCLUDED.pending_buttons,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, dbSess); err != nil {
		return errx.Wrap(err, "failed to save session", errx.TypeInternal).
			WithDetail("conversation_id", session.ConversationID.String())
	}

	return nil
}

func (r *PostgresSessionRepository) Find(ctx context.Context, conversationID kernel.ConversationID, aiAgentID kernel.AIAgentID) (*engine.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM ai_agent_sessions
		WHERE conversation_id = $1 AND ai_agent_id = $2`

	var dbSess dbSession
	err := r.db.GetContext(ctx, &dbSess, query, conversationID.String(), aiAgentID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrSessionNotFound().WithDetail("conversation_id", conversationID.String())
		}
		return nil, errx.Wrap(err, "failed to get session", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}

	session, err := toDomainSession(&dbSess)
	if err != nil {
		return nil, errx.Wrap(err, "failed to convert session", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}
	return session, nil
}

func (r *PostgresSessionRepository) List(ctx context.Context, req engine.SessionListRequest) (engine.SessionListResponse, error) {
	var conditions []string
	var args []any
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argPos))
	args = append(args, req.TenantID.String())
	argPos++

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count query
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ai_agent_sessions WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return engine.SessionListResponse{}, errx.Wrap(err, "failed to count sessions", errx.TypeInternal)
	}

	// Data query
	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM ai_agent_sessions
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d`,
		sessionColumns, whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, req.GetOffset())

	var dbSessions []dbSession
	if err := r.db.SelectContext(ctx, &dbSessions, dataQuery, args...); err != nil {
		return engine.SessionListResponse{}, errx.Wrap(err, "failed to list sessions", errx.TypeInternal)
	}

	sessions := make([]engine.Session, 0, len(dbSessions))
	for i := range dbSessions {
		session, err := toDomainSession(&dbSessions[i])
		if err != nil {
			return engine.SessionListResponse{}, errx.Wrap(err, "failed to convert session", errx.TypeInternal)
		}
		sessions = append(sessions, *session)
	}

	return storex.NewPaginated(sessions, total, req.Page, req.PageSize), nil
}

// CountWaiting sesiones suspendidas esperando input (gauge)
func (r *PostgresSessionRepository) CountWaiting(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM ai_agent_sessions WHERE status = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, string(engine.SessionStatusWaitingForUserInput)); err != nil {
		return 0, errx.Wrap(err, "failed to count waiting sessions", errx.TypeInternal)
	}
	return count, nil
}
