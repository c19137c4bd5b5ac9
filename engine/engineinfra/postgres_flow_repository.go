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
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PostgresFlowRepository struct {
	db *sqlx.DB
}

var _ engine.FlowRepository = (*PostgresFlowRepository)(nil)

func NewPostgresFlowRepository(db *sqlx.DB) *PostgresFlowRepository {
	return &PostgresFlowRepository{db: db}
}

// dbFlow is an intermediate struct for database operations
type dbFlow struct {
	ID        string          `db:"id"`
	TenantID  string          `db:"tenant_id"`
	AIAgentID string          `db:"ai_agent_id"`
	Name      string          `db:"name"`
	IsDefault bool            `db:"is_default"`
	IsActive  bool            `db:"is_active"`
	Nodes     json.RawMessage `db:"nodes"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

const flowColumns = `id, tenant_id, ai_agent_id, name, is_default, is_active, nodes, created_at, updated_at`

// toDBFlow converts domain Flow to dbFlow
func toDBFlow(flow engine.Flow) (*dbFlow, error) {
	nodesJSON := []byte("[]")
	if len(flow.Nodes) > 0 {
		var err error
		nodesJSON, err = json.Marshal(flow.Nodes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal nodes: %w", err)
		}
	}

	return &dbFlow{
		ID:        flow.ID.String(),
		TenantID:  flow.TenantID.String(),
		AIAgentID: flow.AIAgentID.String(),
		Name:      flow.Name,
		IsDefault: flow.IsDefault,
		IsActive:  flow.IsActive,
		Nodes:     nodesJSON,
		CreatedAt: flow.CreatedAt,
		UpdatedAt: flow.UpdatedAt,
	}, nil
}

// toDomainFlow converts dbFlow to domain Flow. Los nodos se decodifican por
// type a su payload tipado.
func toDomainFlow(dbF *dbFlow) (*engine.Flow, error) {
	var nodes []engine.FlowNode
	if len(dbF.Nodes) > 0 && string(dbF.Nodes) != "null" {
		if err := json.Unmarshal(dbF.Nodes, &nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	return &engine.Flow{
		ID:        kernel.FlowID(dbF.ID),
		TenantID:  kernel.TenantID(dbF.TenantID),
		AIAgentID: kernel.AIAgentID(dbF.AIAgentID),
		Name:      dbF.Name,
		IsDefault: dbF.IsDefault,
		IsActive:  dbF.IsActive,
		Nodes:     nodes,
		CreatedAt: dbF.CreatedAt,
		UpdatedAt: dbF.UpdatedAt,
	}, nil
}

func (r *PostgresFlowRepository) Save(ctx context.Context, flow engine.Flow) error {
	dbF, err := toDBFlow(flow)
	if err != nil {
		return errx.Wrap(err, "failed to convert flow", errx.TypeInternal).
			WithDetail("flow_id", flow.ID.String())
	}

	query := `
		INSERT INTO flows (
			id, tenant_id, ai_agent_id, name, is_default, is_active, nodes, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :ai_agent_id, :name, :is_default, :is_active, :nodes, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_default = EXCLUDED.is_default,
			is_active = EXCLUDED.is_active,
			nodes = EXCLUDED.nodes,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.NamedExecContext(ctx, query, dbF)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "flows_one_default_per_agent" {
				return engine.ErrInvalidFlowConfig().
					WithDetail("reason", "AI agent already has a default flow").
					WithDetail("ai_agent_id", flow.AIAgentID.String())
			}
		}
		return errx.Wrap(err, "failed to save flow", errx.TypeInternal).
			WithDetail("flow_id", flow.ID.String())
	}

	return nil
}

func (r *PostgresFlowRepository) FindByID(ctx context.Context, id kernel.FlowID, tenantID kernel.TenantID) (*engine.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE id = $1 AND tenant_id = $2`

	var dbF dbFlow
	if err := r.db.GetContext(ctx, &dbF, query, id.String(), tenantID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrFlowNotFound().WithDetail("flow_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to get flow", errx.TypeInternal).
			WithDetail("flow_id", id.String())
	}

	flow, err := toDomainFlow(&dbF)
	if err != nil {
		return nil, engine.ErrInvalidFlowConfig().
			WithDetail("flow_id", id.String()).
			WithCause(err)
	}
	return flow, nil
}

func (r *PostgresFlowRepository) FindDefault(ctx context.Context, tenantID kernel.TenantID, aiAgentID kernel.AIAgentID) (*engine.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE tenant_id = $1 AND ai_agent_id = $2 AND is_default = true AND is_active = true
		ORDER BY updated_at DESC
		LIMIT 1`

	var dbF dbFlow
	if err := r.db.GetContext(ctx, &dbF, query, tenantID.String(), aiAgentID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrNoDefaultFlow().WithDetail("ai_agent_id", aiAgentID.String())
		}
		return nil, errx.Wrap(err, "failed to get default flow", errx.TypeInternal).
			WithDetail("ai_agent_id", aiAgentID.String())
	}

	flow, err := toDomainFlow(&dbF)
	if err != nil {
		return nil, engine.ErrInvalidFlowConfig().
			WithDetail("flow_id", dbF.ID).
			WithCause(err)
	}
	return flow, nil
}
