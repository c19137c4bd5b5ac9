package flowexec

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/nodeexec"
	"github.com/Abraxas-365/flowpilot/pkg/metrics"
)

// DefaultMaxSteps límite de nodos ejecutados por turno
const DefaultMaxSteps = 200

// FlowExecutor recorre el grafo de un flujo durante un turno: resuelve el
// nodo inicial, ejecuta nodos hasta suspender o terminar y hace commit de
// los items producidos y de la sesión.
type FlowExecutor struct {
	nodeExecutors map[engine.NodeType]nodeexec.NodeExecutor
	conversations engine.ConversationStore
	sessions      engine.SessionRepository
	publisher     engine.EventPublisher
	maxSteps      int
}

func NewFlowExecutor(
	conversations engine.ConversationStore,
	sessions engine.SessionRepository,
	publisher engine.EventPublisher,
	maxSteps int,
	nodeExecutors ...nodeexec.NodeExecutor,
) (*FlowExecutor, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	executor := &FlowExecutor{
		nodeExecutors: make(map[engine.NodeType]nodeexec.NodeExecutor),
		conversations: conversations,
		sessions:      sessions,
		publisher:     publisher,
		maxSteps:      maxSteps,
	}

	for _, nodeExec := range nodeExecutors {
		executor.RegisterNodeExecutor(nodeExec)
	}

	// el conjunto de tipos es cerrado: falta uno = error de arranque
	for _, nodeType := range engine.ExecutableNodeTypes {
		if _, ok := executor.nodeExecutors[nodeType]; !ok {
			return nil, engine.ErrNoExecutorForNode().WithDetail("node_type", nodeType.String())
		}
	}

	return executor, nil
}

func (e *FlowExecutor) RegisterNodeExecutor(executor nodeexec.NodeExecutor) {
	for _, nodeType := range engine.ExecutableNodeTypes {
		if executor.SupportsType(nodeType) {
			e.nodeExecutors[nodeType] = executor
			log.Printf("✅ Registered executor for node type: %s", nodeType)
		}
	}
}

// ============================================================================
// Execute - un turno
// ============================================================================

// Execute corre un turno sobre turn. Solo devuelve error en fallas de
// infraestructura (persistencia); las fallas de un nodo y el límite de pasos
// terminan el turno sin salida y se reportan en el resultado.
func (e *FlowExecutor) Execute(ctx context.Context, turn *nodeexec.Turn) (*engine.TurnResult, error) {
	result := &engine.TurnResult{
		ConversationID: turn.Conversation.ID,
		Outcome:        engine.TurnCompleted,
		Handled:        true,
	}

	if err := e.ValidateFlow(turn.Flow); err != nil {
		logx.Error("Invalid flow %s for conversation %s: %v", turn.Flow.ID, turn.Conversation.ID, err)
		result.Outcome = engine.TurnFailed
		result.Handled = false
		return e.finish(ctx, turn, result)
	}

	start, ok := e.resolveStart(turn)
	if !ok {
		log.Printf("⏸️  Nothing to run for conversation %s", turn.Conversation.ID)
		result.Outcome = engine.TurnSkipped
		result.Handled = false
		result.SkipReason = "no runnable node"
		return e.finish(ctx, turn, result)
	}

	log.Printf("🚀 Running flow %s for conversation %s from node %s", turn.Graph.FlowID, turn.Conversation.ID, start)

	nodeID := start
	// hops cuenta todo nodo visitado, brazos incluidos: una cadena de brazos
	// cíclica también queda acotada por el límite
	hops := 0
	for {
		node, ok := turn.Graph.Node(nodeID)
		if !ok {
			e.fault(turn, result, nodeID, "", engine.ErrNodeNotFound().
				WithDetail("node_id", nodeID).
				WithDetail("flow_id", turn.Graph.FlowID))
			break
		}

		if hops >= e.maxSteps {
			return e.abort(ctx, turn, result, node)
		}
		hops++

		// los brazos nunca se ejecutan
		if node.Type.IsArm() {
			child, ok := turn.Graph.FirstChild(node.ID)
			if !ok {
				turn.Session.ClearCursor()
				break
			}
			nodeID = child.ID
			turn.Session.MoveTo(nodeID)
			continue
		}

		result.StepsExecuted++

		step, err := e.executeNode(ctx, turn, node)
		if err != nil {
			e.fault(turn, result, node.ID, node.Type, err)
			break
		}
		metrics.RecordNodeExecution(node.Type.String(), step.Kind.String())

		if step.Kind == engine.StepAdvance {
			nodeID = step.NextNodeID
			turn.Session.MoveTo(nodeID)
			continue
		}

		if step.Kind == engine.StepSuspend {
			turn.Session.WaitForUserInput(node.ID)
			result.Outcome = engine.TurnSuspended
			log.Printf("⏸️  Conversation %s waiting for user input at node %s", turn.Conversation.ID, node.ID)
			break
		}

		// StepHalt
		if step.NextNodeID != "" {
			turn.Session.MoveTo(step.NextNodeID)
		} else {
			turn.Session.ClearCursor()
		}
		if !step.Handled {
			result.Outcome = engine.TurnRejected
			result.Handled = false
		}
		break
	}

	return e.finish(ctx, turn, result)
}

// resolveStart decide desde qué nodo corre el turno
func (e *FlowExecutor) resolveStart(turn *nodeexec.Turn) (string, bool) {
	session := turn.Session

	if session.HasPendingNode() {
		current := session.CurrentNode()
		if _, ok := turn.Graph.Node(current); ok {
			if session.IsWaiting() {
				// sin input no hay nada que reanudar
				return current, turn.Input != nil
			}
			return current, true
		}
		log.Printf("⚠️  Session cursor %s no longer exists in flow %s, restarting", current, turn.Graph.FlowID)
		session.ClearCursor()
	}

	start, ok := turn.Graph.StartNode()
	if !ok {
		return "", false
	}
	if turn.Input == nil && !start.Type.CanUseAsGreetingNode() {
		return "", false
	}
	return start.ID, true
}

// executeNode ejecuta un nodo aislado: un panic se convierte en error y la
// sesión vuelve al estado previo al nodo
func (e *FlowExecutor) executeNode(ctx context.Context, turn *nodeexec.Turn, node *engine.FlowNode) (step engine.StepResult, err error) {
	executor, ok := e.nodeExecutors[node.Type]
	if !ok {
		return engine.StepResult{}, engine.ErrNoExecutorForNode().
			WithDetail("node_id", node.ID).
			WithDetail("node_type", node.Type.String())
	}

	snapshot := turn.Session.Clone()
	flow, graph := turn.Flow, turn.Graph
	itemCount := len(turn.Items)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("💥 Panic in node %s: %v\n%s", node.ID, r, debug.Stack())
			err = engine.ErrNodeExecutionPanic().
				WithDetail("node_id", node.ID).
				WithDetail("panic", fmt.Sprint(r))
		}
		if err != nil {
			*turn.Session = *snapshot
			turn.Flow, turn.Graph = flow, graph
			turn.Items = turn.Items[:itemCount]
		}
	}()

	log.Printf("⚡ Executing node: %s (type: %s)", node.ID, node.Type)
	return executor.Execute(ctx, turn, node)
}

// fault una falla de nodo termina el turno sin salida del bot
func (e *FlowExecutor) fault(turn *nodeexec.Turn, result *engine.TurnResult, nodeID string, nodeType engine.NodeType, err error) {
	logx.Error("Node %s (%s) failed in flow %s: %v", nodeID, nodeType, turn.Graph.FlowID, err)
	metrics.RecordNodeFailure(nodeType.String())

	turn.Items = nil
	turn.Session.ClearCursor()
	result.Outcome = engine.TurnFailed
	result.Handled = false
}

// abort el turno superó el límite de pasos: se descartan los items y la
// sesión queda como después del último paso exitoso
func (e *FlowExecutor) abort(ctx context.Context, turn *nodeexec.Turn, result *engine.TurnResult, node *engine.FlowNode) (*engine.TurnResult, error) {
	limitErr := engine.ErrStepLimitExceeded().
		WithDetail("flow_id", turn.Graph.FlowID).
		WithDetail("node_id", node.ID).
		WithDetail("max_steps", e.maxSteps)
	logx.Error("Step limit exceeded for conversation %s: %v", turn.Conversation.ID, limitErr)

	metrics.RecordNodeFailure(node.Type.String())

	turn.Items = nil
	result.Outcome = engine.TurnFailed
	result.Handled = false

	return e.finish(ctx, turn, result)
}

// ============================================================================
// Commit
// ============================================================================

// finish persiste los items, publica message.created y guarda la sesión
func (e *FlowExecutor) finish(ctx context.Context, turn *nodeexec.Turn, result *engine.TurnResult) (*engine.TurnResult, error) {
	startTime := time.Now()

	for i := range turn.Items {
		item := &turn.Items[i]
		if err := e.conversations.AppendItem(ctx, item); err != nil {
			return result, errx.Wrap(err, "failed to append conversation item", errx.TypeInternal).
				WithDetail("conversation_id", turn.Conversation.ID.String()).
				WithDetail("item_type", string(item.Type))
		}
		result.ItemIDs = append(result.ItemIDs, item.ID)
	}

	for _, item := range turn.Items {
		if err := e.publisher.PublishMessageCreated(ctx, turn.Conversation.TenantID, item); err != nil {
			log.Printf("⚠️  Failed to publish message.created for %s: %v", item.ID, err)
		}
	}

	if err := e.sessions.Save(ctx, *turn.Session); err != nil {
		return result, errx.Wrap(err, "failed to save session", errx.TypeInternal).
			WithDetail("conversation_id", turn.Conversation.ID.String())
	}

	result.CurrentNodeID = turn.Session.CurrentNodeID
	result.Status = turn.Session.Status
	result.ActiveFlowID = turn.Session.ActiveFlowID

	log.Printf("✅ Turn committed for conversation %s: %s, %d items, %d steps in %v",
		turn.Conversation.ID, result.Outcome, len(result.ItemIDs), result.StepsExecuted, time.Since(startTime))
	return result, nil
}

// ============================================================================
// Validation
// ============================================================================

// ValidateFlow verifica ids únicos, tipos conocidos y padres existentes
func (e *FlowExecutor) ValidateFlow(flow *engine.Flow) error {
	if flow == nil || len(flow.Nodes) == 0 {
		return engine.ErrInvalidFlowConfig().WithDetail("reason", "flow has no nodes")
	}

	nodeIDs := make(map[string]bool, len(flow.Nodes))
	for _, node := range flow.Nodes {
		if node.ID == "" {
			return engine.ErrInvalidFlowConfig().WithDetail("reason", "node has no ID")
		}
		if nodeIDs[node.ID] {
			return engine.ErrInvalidFlowConfig().
				WithDetail("node_id", node.ID).
				WithDetail("reason", "duplicate node ID")
		}
		nodeIDs[node.ID] = true

		if !node.Type.IsValid() {
			return engine.ErrInvalidFlowConfig().
				WithDetail("node_id", node.ID).
				WithDetail("node_type", node.Type.String()).
				WithDetail("reason", "unknown node type")
		}
	}

	for _, node := range flow.Nodes {
		if !node.IsRoot() && !nodeIDs[node.ParentID] {
			return engine.ErrInvalidFlowConfig().
				WithDetail("node_id", node.ID).
				WithDetail("parent_id", node.ParentID).
				WithDetail("reason", "parent references non-existent node")
		}
	}

	return nil
}
