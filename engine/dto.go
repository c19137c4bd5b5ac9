package engine

import (
	"github.com/Abraxas-365/craftable/storex"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ============================================================================
// Turn DTOs
// ============================================================================

// TurnOutcome cómo terminó un turno
type TurnOutcome string

const (
	TurnCompleted TurnOutcome = "completed"
	TurnSuspended TurnOutcome = "suspended"
	TurnRejected  TurnOutcome = "rejected"
	TurnFailed    TurnOutcome = "failed"
	TurnSkipped   TurnOutcome = "skipped"
)

type RunTurnRequest struct {
	MessageID *kernel.MessageID `json:"message_id,omitempty"`
}

// TurnResult resumen de un turno para el llamador
type TurnResult struct {
	ConversationID kernel.ConversationID `json:"conversation_id"`
	Outcome        TurnOutcome           `json:"outcome"`
	Handled        bool                  `json:"handled"`
	ItemIDs        []kernel.MessageID    `json:"item_ids,omitempty"`
	CurrentNodeID  *string               `json:"current_node_id"`
	Status         SessionStatus         `json:"status,omitempty"`
	ActiveFlowID   kernel.FlowID         `json:"active_flow_id,omitempty"`
	StepsExecuted  int                   `json:"steps_executed"`
	SkipReason     string                `json:"skip_reason,omitempty"`
}

// Committed la sesión del turno quedó persistida
func (r *TurnResult) Committed() bool {
	return r != nil && r.Status != ""
}

// Skipped resultado de un turno que no corrió
func Skipped(conversationID kernel.ConversationID, reason string) *TurnResult {
	return &TurnResult{
		ConversationID: conversationID,
		Outcome:        TurnSkipped,
		SkipReason:     reason,
	}
}

// ============================================================================
// Session DTOs
// ============================================================================

type SessionListRequest struct {
	storex.PaginationOptions
	TenantID kernel.TenantID `json:"tenant_id"`
	Status   *SessionStatus  `json:"status,omitempty"`
}

func (r SessionListRequest) GetOffset() int {
	return (r.Page - 1) * r.PageSize
}

type SessionListResponse = storex.Paginated[Session]

type SessionResponse struct {
	Session Session `json:"session"`
}
