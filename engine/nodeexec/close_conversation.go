package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
)

// CloseConversationExecutor cierra la conversación. Es terminal.
type CloseConversationExecutor struct {
	store engine.ConversationStore
}

var _ NodeExecutor = (*CloseConversationExecutor)(nil)

func NewCloseConversationExecutor(store engine.ConversationStore) *CloseConversationExecutor {
	return &CloseConversationExecutor{store: store}
}

func (e *CloseConversationExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.CloseConversationData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	conv := turn.Conversation
	if data.Text != "" {
		if _, err := turn.Emit(engine.ItemTypeMessage, turn.ReplacerFor(node).Execute(data.Text), nil); err != nil {
			return engine.StepResult{}, err
		}
	}

	if err := e.store.Close(ctx, conv.ID); err != nil {
		return engine.StepResult{}, errx.Wrap(err, "failed to close conversation", errx.TypeInternal).
			WithDetail("conversation_id", conv.ID.String())
	}
	conv.Status = engine.ConversationStatusClosed

	if err := e.store.RecordEvent(ctx, conv.ID, engine.EventClosedByAIAgent, map[string]any{"node_id": node.ID}); err != nil {
		log.Printf("⚠️  Failed to record close event for %s: %v", conv.ID, err)
	}

	log.Printf("🔒 CloseConversation node %s closed %s", node.ID, conv.ID)
	return engine.Halt(), nil
}

func (e *CloseConversationExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeCloseConversation
}
