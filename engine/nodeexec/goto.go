package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
)

// ============================================================================
// GoToStep
// ============================================================================

// GoToStepExecutor salta a otro nodo del mismo flujo
type GoToStepExecutor struct{}

var _ NodeExecutor = (*GoToStepExecutor)(nil)

func NewGoToStepExecutor() *GoToStepExecutor {
	return &GoToStepExecutor{}
}

func (e *GoToStepExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.GoToStepData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	if _, ok := turn.Graph.Node(data.TargetNodeID); !ok {
		return engine.StepResult{}, engine.ErrNodeNotFound().
			WithDetail("node_id", node.ID).
			WithDetail("target_node_id", data.TargetNodeID)
	}

	// un brazo redirige a su hijo
	target, ok := turn.Graph.Resolve(data.TargetNodeID)
	if !ok {
		log.Printf("⚠️  GoToStep node %s: target %s leads nowhere", node.ID, data.TargetNodeID)
		return engine.Halt(), nil
	}

	log.Printf("↪️  GoToStep node %s -> %s", node.ID, target.ID)
	return engine.Advance(target.ID), nil
}

func (e *GoToStepExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeGoToStep
}

// ============================================================================
// GoToFlow
// ============================================================================

// GoToFlowExecutor cambia el flujo activo de la sesión y sigue en su inicio
type GoToFlowExecutor struct {
	flows engine.FlowRepository
}

var _ NodeExecutor = (*GoToFlowExecutor)(nil)

func NewGoToFlowExecutor(flows engine.FlowRepository) *GoToFlowExecutor {
	return &GoToFlowExecutor{flows: flows}
}

func (e *GoToFlowExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.GoToFlowData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	flow, err := e.flows.FindByID(ctx, data.FlowID, turn.Conversation.TenantID)
	if err != nil {
		return engine.StepResult{}, errx.Wrap(err, "failed to load target flow", errx.TypeInternal).
			WithDetail("node_id", node.ID).
			WithDetail("flow_id", data.FlowID.String())
	}
	if !flow.IsActive {
		return engine.StepResult{}, engine.ErrFlowNotFound().
			WithDetail("flow_id", data.FlowID.String()).
			WithDetail("reason", "inactive")
	}

	graph := engine.NewGraph(flow)
	start, ok := graph.StartNode()
	if !ok {
		log.Printf("⚠️  GoToFlow node %s: flow %s has no nodes", node.ID, flow.ID)
		return engine.Halt(), nil
	}
	if flow.ID.String() == turn.Graph.FlowID && start.ID == node.ID {
		log.Printf("⚠️  GoToFlow node %s points at itself, ending turn", node.ID)
		return engine.Halt(), nil
	}

	turn.SwitchFlow(flow)
	log.Printf("🔁 GoToFlow node %s -> flow %s (start %s)", node.ID, flow.ID, start.ID)
	return engine.Advance(start.ID), nil
}

func (e *GoToFlowExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeGoToFlow
}
