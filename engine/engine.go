package engine

import (
	"time"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// RootParentID es el parent sentinel de los nodos raíz del flujo
const RootParentID = "start"

// ============================================================================
// Flow Entity
// ============================================================================

// Flow es un grafo de nodos autorado en el builder, propiedad de un AI agent
type Flow struct {
	ID        kernel.FlowID    `db:"id" json:"id"`
	TenantID  kernel.TenantID  `db:"tenant_id" json:"tenant_id"`
	AIAgentID kernel.AIAgentID `db:"ai_agent_id" json:"ai_agent_id"`
	Name      string           `db:"name" json:"name"`
	IsDefault bool             `db:"is_default" json:"is_default"`
	IsActive  bool             `db:"is_active" json:"is_active"`
	Nodes     []FlowNode       `db:"nodes" json:"nodes"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// FlowNode un paso del flujo. Los nodos son inmutables durante la ejecución.
type FlowNode struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	ParentID string   `json:"parentId"`
	// Handle etiqueta la arista desde el padre (success / failure bajo useTool)
	Handle string   `json:"handle,omitempty"`
	Data   NodeData `json:"-"`
}

// IsRoot indica si el nodo cuelga directamente del sentinel
func (n *FlowNode) IsRoot() bool {
	return n.ParentID == RootParentID || n.ParentID == ""
}

// IsValid verifica si el flujo es válido
func (f *Flow) IsValid() bool {
	return !f.ID.IsEmpty() && !f.TenantID.IsEmpty() && len(f.Nodes) > 0
}

// ============================================================================
// NodeType
// ============================================================================

// NodeType tag cerrado de nodos del flujo
type NodeType string

const (
	NodeTypeMessage           NodeType = "message"
	NodeTypeButtons           NodeType = "buttons"
	NodeTypeDynamicButtons    NodeType = "dynamicButtons"
	NodeTypeCards             NodeType = "cards"
	NodeTypeDynamicCards      NodeType = "dynamicCards"
	NodeTypeBranches          NodeType = "branches"
	NodeTypeCollectDetails    NodeType = "collectDetails"
	NodeTypeSetAttribute      NodeType = "setAttribute"
	NodeTypeAddTags           NodeType = "addTags"
	NodeTypeTransfer          NodeType = "transfer"
	NodeTypeCloseConversation NodeType = "closeConversation"
	NodeTypeGoToStep          NodeType = "goToStep"
	NodeTypeGoToFlow          NodeType = "goToFlow"
	NodeTypeUseTool           NodeType = "useTool"
	NodeTypeArticles          NodeType = "articles"

	// Brazos estructurales: nunca se ejecutan, el cursor pasa a su hijo
	NodeTypeBranch NodeType = "branch"
	NodeTypeButton NodeType = "button"
)

// ExecutableNodeTypes los 15 tipos que tienen executor
var ExecutableNodeTypes = []NodeType{
	NodeTypeMessage,
	NodeTypeButtons,
	NodeTypeDynamicButtons,
	NodeTypeCards,
	NodeTypeDynamicCards,
	NodeTypeBranches,
	NodeTypeCollectDetails,
	NodeTypeSetAttribute,
	NodeTypeAddTags,
	NodeTypeTransfer,
	NodeTypeCloseConversation,
	NodeTypeGoToStep,
	NodeTypeGoToFlow,
	NodeTypeUseTool,
	NodeTypeArticles,
}

// CanUseAsGreetingNode nodos seguros para mostrar como primera salida del bot
func (t NodeType) CanUseAsGreetingNode() bool {
	switch t {
	case NodeTypeMessage, NodeTypeButtons, NodeTypeCards, NodeTypeArticles, NodeTypeDynamicCards:
		return true
	}
	return false
}

// WaitsForUserInput nodos que suspenden el turno hasta el próximo mensaje
func (t NodeType) WaitsForUserInput() bool {
	switch t {
	case NodeTypeButtons, NodeTypeDynamicButtons, NodeTypeCollectDetails:
		return true
	}
	return false
}

func (t NodeType) IsArm() bool {
	return t == NodeTypeBranch || t == NodeTypeButton
}

func (t NodeType) IsValid() bool {
	if t.IsArm() {
		return true
	}
	for _, known := range ExecutableNodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t NodeType) String() string { return string(t) }

// ============================================================================
// Step Result
// ============================================================================

// StepKind resultado tri-estado de un executor
type StepKind int

const (
	// StepAdvance mueve el cursor al nodo indicado
	StepAdvance StepKind = iota
	// StepSuspend deja la sesión esperando input en el nodo actual
	StepSuspend
	// StepHalt termina el turno
	StepHalt
)

func (k StepKind) String() string {
	switch k {
	case StepAdvance:
		return "advance"
	case StepSuspend:
		return "suspend"
	case StepHalt:
		return "halt"
	}
	return "unknown"
}

// StepResult lo que un executor le pide al orquestador
type StepResult struct {
	Kind StepKind
	// NextNodeID destino de Advance, o nodo pendiente en HaltAt
	NextNodeID string
	// Handled es false cuando el nodo rechazó el input del usuario
	Handled bool
}

func Advance(nodeID string) StepResult {
	return StepResult{Kind: StepAdvance, NextNodeID: nodeID, Handled: true}
}

func Suspend() StepResult {
	return StepResult{Kind: StepSuspend, Handled: true}
}

// Halt termina el turno y limpia el cursor
func Halt() StepResult {
	return StepResult{Kind: StepHalt, Handled: true}
}

// HaltAt termina el turno dejando nodeID pendiente para el próximo turno
func HaltAt(nodeID string) StepResult {
	return StepResult{Kind: StepHalt, NextNodeID: nodeID, Handled: true}
}

// Reject termina el turno sin manejar el input: cursor nulo, sin salida
func Reject() StepResult {
	return StepResult{Kind: StepHalt, Handled: false}
}
