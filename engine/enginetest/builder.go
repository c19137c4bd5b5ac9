package enginetest

import (
	"time"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

const (
	TenantID  = kernel.TenantID("tenant-1")
	AIAgentID = kernel.AIAgentID("agent-bot")
)

// Node arma un FlowNode cuyo tipo sale del payload
func Node(id, parentID string, data engine.NodeData) engine.FlowNode {
	if parentID == "" {
		parentID = engine.RootParentID
	}
	return engine.FlowNode{
		ID:       id,
		Type:     data.NodeType(),
		ParentID: parentID,
		Data:     data,
	}
}

// HandleNode igual que Node pero con handle de arista (success / failure)
func HandleNode(id, parentID, handle string, data engine.NodeData) engine.FlowNode {
	n := Node(id, parentID, data)
	n.Handle = handle
	return n
}

// Flow flujo activo por defecto del AI agent de prueba
func Flow(id string, nodes ...engine.FlowNode) *engine.Flow {
	now := time.Now()
	return &engine.Flow{
		ID:        kernel.FlowID(id),
		TenantID:  TenantID,
		AIAgentID: AIAgentID,
		Name:      id,
		IsDefault: true,
		IsActive:  true,
		Nodes:     nodes,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Conversation conversación abierta atendida por el AI agent de prueba
func Conversation(id, userID string) *engine.Conversation {
	now := time.Now()
	return &engine.Conversation{
		ID:        kernel.ConversationID(id),
		TenantID:  TenantID,
		AIAgentID: AIAgentID,
		UserID:    kernel.UserID(userID),
		Status:    engine.ConversationStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Condition condición sobre un atributo de sesión
func Condition(attribute, operator, value string) engine.Condition {
	return engine.Condition{
		Source:    engine.SourceAttribute,
		Attribute: attribute,
		Operator:  operator,
		Value:     value,
	}
}

// Arm brazo de branches con un único grupo "and"
func Arm(conditions ...engine.Condition) *engine.BranchArmData {
	return &engine.BranchArmData{
		MatchType: engine.MatchAll,
		Groups: []engine.ConditionGroup{
			{MatchType: engine.MatchAll, Conditions: conditions},
		},
	}
}

// ElseArm brazo else
func ElseArm() *engine.BranchArmData {
	return &engine.BranchArmData{IsElse: true}
}
