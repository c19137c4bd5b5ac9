package toolinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/Abraxas-365/flowpilot/tool"
	"github.com/jmoiron/sqlx"
)

type PostgresToolRepository struct {
	db *sqlx.DB
}

var _ tool.ToolRepository = (*PostgresToolRepository)(nil)

func NewPostgresToolRepository(db *sqlx.DB) *PostgresToolRepository {
	return &PostgresToolRepository{db: db}
}

// dbTool is an intermediate struct for database operations
type dbTool struct {
	ID             string          `db:"id"`
	TenantID       string          `db:"tenant_id"`
	Name           string          `db:"name"`
	Description    string          `db:"description"`
	Type           string          `db:"type"`
	Config         json.RawMessage `db:"config"`
	ResponseSchema json.RawMessage `db:"response_schema"`
	IsActive       bool            `db:"is_active"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func toDBTool(t tool.Tool) (*dbTool, error) {
	configJSON, err := json.Marshal(t.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	schemaJSON, err := json.Marshal(t.ResponseSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response schema: %w", err)
	}

	return &dbTool{
		ID:             t.ID.String(),
		TenantID:       t.TenantID.String(),
		Name:           t.Name,
		Description:    t.Description,
		Type:           string(t.Type),
		Config:         configJSON,
		ResponseSchema: schemaJSON,
		IsActive:       t.IsActive,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}, nil
}

func toDomainTool(row *dbTool) (*tool.Tool, error) {
	t := &tool.Tool{
		ID:          kernel.ToolID(row.ID),
		TenantID:    kernel.TenantID(row.TenantID),
		Name:        row.Name,
		Description: row.Description,
		Type:        tool.ToolType(row.Type),
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if len(row.Config) > 0 && string(row.Config) != "null" {
		if err := json.Unmarshal(row.Config, &t.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	if len(row.ResponseSchema) > 0 && string(row.ResponseSchema) != "null" {
		if err := json.Unmarshal(row.ResponseSchema, &t.ResponseSchema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response schema: %w", err)
		}
	}
	return t, nil
}

func (r *PostgresToolRepository) Save(ctx context.Context, t tool.Tool) error {
	if !t.IsValid() {
		return tool.ErrInvalidToolConfig().WithDetail("tool_id", t.ID.String())
	}

	row, err := toDBTool(t)
	if err != nil {
		return errx.Wrap(err, "failed to convert tool", errx.TypeInternal).
			WithDetail("tool_id", t.ID.String())
	}

	query := `
		INSERT INTO tools (
			id, tenant_id, name, description, type, config, response_schema,
			is_active, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :name, :description, :type, :config, :response_schema,
			:is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			config = EXCLUDED.config,
			response_schema = EXCLUDED.response_schema,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errx.Wrap(err, "failed to save tool", errx.TypeInternal).
			WithDetail("tool_id", t.ID.String())
	}
	return nil
}

func (r *PostgresToolRepository) FindByID(ctx context.Context, id kernel.ToolID, tenantID kernel.TenantID) (*tool.Tool, error) {
	query := `
		SELECT id, tenant_id, name, description, type, config, response_schema,
			is_active, created_at, updated_at
		FROM tools
		WHERE id = $1 AND tenant_id = $2`

	var row dbTool
	if err := r.db.GetContext(ctx, &row, query, id.String(), tenantID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, tool.ErrToolNotFound().WithDetail("tool_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to get tool", errx.TypeInternal).
			WithDetail("tool_id", id.String())
	}

	t, err := toDomainTool(&row)
	if err != nil {
		return nil, tool.ErrInvalidToolConfig().
			WithDetail("tool_id", id.String()).
			WithCause(err)
	}
	return t, nil
}
