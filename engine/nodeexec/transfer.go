package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// TransferExecutor pasa la conversación a un agente humano. Es terminal.
type TransferExecutor struct {
	store    engine.ConversationStore
	assigner engine.AgentAssigner
}

var _ NodeExecutor = (*TransferExecutor)(nil)

func NewTransferExecutor(store engine.ConversationStore, assigner engine.AgentAssigner) *TransferExecutor {
	return &TransferExecutor{store: store, assigner: assigner}
}

func (e *TransferExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.TransferData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	conv := turn.Conversation
	if data.Text != "" {
		if _, err := turn.Emit(engine.ItemTypeMessage, turn.ReplacerFor(node).Execute(data.Text), nil); err != nil {
			return engine.StepResult{}, err
		}
	}

	groupID := conv.GroupID
	if !data.GroupID.IsEmpty() && data.GroupID != conv.GroupID {
		if err := e.store.UpdateGroup(ctx, conv.ID, data.GroupID); err != nil {
			return engine.StepResult{}, errx.Wrap(err, "failed to update conversation group", errx.TypeInternal).
				WithDetail("conversation_id", conv.ID.String()).
				WithDetail("group_id", data.GroupID.String())
		}
		conv.GroupID = data.GroupID
		groupID = data.GroupID
	}

	agentID := data.AgentID
	if !agentID.IsEmpty() {
		if err := e.assigner.AssignTo(ctx, conv.ID, agentID); err != nil {
			return engine.StepResult{}, engine.ErrAssignmentFailed().
				WithDetail("conversation_id", conv.ID.String()).
				WithDetail("agent_id", agentID.String()).
				WithCause(err)
		}
	} else {
		agentID, err = e.assigner.AssignFirstAvailable(ctx, conv.ID, groupID)
		if err != nil {
			return engine.StepResult{}, engine.ErrAssignmentFailed().
				WithDetail("conversation_id", conv.ID.String()).
				WithDetail("group_id", groupID.String()).
				WithCause(err)
		}
	}
	conv.AssigneeID = agentID

	e.recordTransfer(ctx, conv, groupID, agentID)

	log.Printf("🙋 Transfer node %s: conversation %s -> agent %q (group %q)", node.ID, conv.ID, agentID, groupID)
	return engine.Halt(), nil
}

func (e *TransferExecutor) recordTransfer(ctx context.Context, conv *engine.Conversation, groupID kernel.GroupID, agentID kernel.AgentID) {
	err := e.store.RecordEvent(ctx, conv.ID, engine.EventTransferredByAIAgent, map[string]any{
		"group_id": groupID.String(),
		"agent_id": agentID.String(),
	})
	if err != nil {
		log.Printf("⚠️  Failed to record transfer event for %s: %v", conv.ID, err)
	}
}

func (e *TransferExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeTransfer
}
