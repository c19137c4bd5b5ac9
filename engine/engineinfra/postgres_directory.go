package engineinfra

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ============================================================================
// Tags
// ============================================================================

type PostgresTagStore struct {
	db *sqlx.DB
}

var _ engine.TagStore = (*PostgresTagStore)(nil)

func NewPostgresTagStore(db *sqlx.DB) *PostgresTagStore {
	return &PostgresTagStore{db: db}
}

// FindIDsByNames solo resuelve tags existentes; los nombres desconocidos se ignoran
func (s *PostgresTagStore) FindIDsByNames(ctx context.Context, tenantID kernel.TenantID, names []string) ([]kernel.TagID, error) {
	if len(names) == 0 {
		return nil, nil
	}

	query := `SELECT id FROM tags WHERE tenant_id = $1 AND name = ANY($2)`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, tenantID.String(), pq.Array(names)); err != nil {
		return nil, errx.Wrap(err, "failed to find tags", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}

	tagIDs := make([]kernel.TagID, 0, len(ids))
	for _, id := range ids {
		tagIDs = append(tagIDs, kernel.TagID(id))
	}
	return tagIDs, nil
}

func (s *PostgresTagStore) AttachToConversation(ctx context.Context, conversationID kernel.ConversationID, tagIDs []kernel.TagID) error {
	query := `
		INSERT INTO conversation_tags (conversation_id, tag_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, conversationID.String(), pq.Array(tagStrings(tagIDs))); err != nil {
		return errx.Wrap(err, "failed to tag conversation", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}
	return nil
}

func (s *PostgresTagStore) AttachToUser(ctx context.Context, userID kernel.UserID, tagIDs []kernel.TagID) error {
	query := `
		INSERT INTO end_user_tags (user_id, tag_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, userID.String(), pq.Array(tagStrings(tagIDs))); err != nil {
		return errx.Wrap(err, "failed to tag user", errx.TypeInternal).
			WithDetail("user_id", userID.String())
	}
	return nil
}

func tagStrings(ids []kernel.TagID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ============================================================================
// Articles
// ============================================================================

type PostgresArticleStore struct {
	db *sqlx.DB
}

var _ engine.ArticleStore = (*PostgresArticleStore)(nil)

func NewPostgresArticleStore(db *sqlx.DB) *PostgresArticleStore {
	return &PostgresArticleStore{db: db}
}

func (s *PostgresArticleStore) FindByIDs(ctx context.Context, tenantID kernel.TenantID, ids []kernel.ArticleID) ([]engine.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `
		SELECT id, tenant_id, title, summary, url, image_url
		FROM articles
		WHERE tenant_id = $1 AND id = ANY($2) AND is_published = true`

	var articles []engine.Article
	if err := s.db.SelectContext(ctx, &articles, query, tenantID.String(), pq.Array(raw)); err != nil {
		return nil, errx.Wrap(err, "failed to find articles", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}
	return articles, nil
}

// ============================================================================
// Agent assignment
// ============================================================================

type PostgresAgentAssigner struct {
	db *sqlx.DB
}

var _ engine.AgentAssigner = (*PostgresAgentAssigner)(nil)

func NewPostgresAgentAssigner(db *sqlx.DB) *PostgresAgentAssigner {
	return &PostgresAgentAssigner{db: db}
}

func (a *PostgresAgentAssigner) AssignTo(ctx context.Context, conversationID kernel.ConversationID, agentID kernel.AgentID) error {
	query := `UPDATE conversations SET assignee_id = $2, updated_at = NOW() WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query, conversationID.String(), agentID.String())
	if err != nil {
		return errx.Wrap(err, "failed to assign conversation", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String()).
			WithDetail("agent_id", agentID.String())
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return engine.ErrConversationNotFound().WithDetail("conversation_id", conversationID.String())
	}
	return nil
}

// AssignFirstAvailable elige el agente online del grupo con menos
// conversaciones abiertas
func (a *PostgresAgentAssigner) AssignFirstAvailable(ctx context.Context, conversationID kernel.ConversationID, groupID kernel.GroupID) (kernel.AgentID, error) {
	query := `
		SELECT ag.id
		FROM agents ag
		JOIN agent_groups gm ON gm.agent_id = ag.id
		LEFT JOIN conversations c ON c.assignee_id = ag.id AND c.status = 'open'
		WHERE gm.group_id = $1 AND ag.status = 'online'
		GROUP BY ag.id
		ORDER BY COUNT(c.id) ASC, ag.id ASC
		LIMIT 1`

	var agentID string
	if err := a.db.GetContext(ctx, &agentID, query, groupID.String()); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errx.Wrap(err, "failed to find available agent", errx.TypeInternal).
			WithDetail("group_id", groupID.String())
	}

	if err := a.AssignTo(ctx, conversationID, kernel.AgentID(agentID)); err != nil {
		return "", err
	}
	return kernel.AgentID(agentID), nil
}
