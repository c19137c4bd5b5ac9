package nodeexec

import (
	"context"
	"log"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
)

// AddTagsExecutor aplica tags existentes a la conversación y/o al usuario.
// Los nombres que no existen se ignoran; nunca se crean tags.
type AddTagsExecutor struct {
	tags engine.TagStore
}

var _ NodeExecutor = (*AddTagsExecutor)(nil)

func NewAddTagsExecutor(tags engine.TagStore) *AddTagsExecutor {
	return &AddTagsExecutor{tags: tags}
}

func (e *AddTagsExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.AddTagsData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	r := turn.ReplacerFor(node)
	names := make([]string, 0, len(data.Tags))
	for _, t := range data.Tags {
		if name := strings.TrimSpace(r.Execute(t)); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return next(turn, node), nil
	}

	ids, err := e.tags.FindIDsByNames(ctx, turn.Conversation.TenantID, names)
	if err != nil {
		return engine.StepResult{}, errx.Wrap(err, "failed to resolve tags", errx.TypeInternal).
			WithDetail("node_id", node.ID)
	}
	if len(ids) == 0 {
		log.Printf("⚠️  AddTags node %s: none of %v exist", node.ID, names)
		return next(turn, node), nil
	}

	target := data.Target
	if target == "" {
		target = engine.TagTargetConversation
	}

	if target == engine.TagTargetConversation || target == engine.TagTargetBoth {
		if err := e.tags.AttachToConversation(ctx, turn.Conversation.ID, ids); err != nil {
			return engine.StepResult{}, errx.Wrap(err, "failed to tag conversation", errx.TypeInternal).
				WithDetail("conversation_id", turn.Conversation.ID.String())
		}
	}
	if (target == engine.TagTargetUser || target == engine.TagTargetBoth) && !turn.Conversation.UserID.IsEmpty() {
		if err := e.tags.AttachToUser(ctx, turn.Conversation.UserID, ids); err != nil {
			return engine.StepResult{}, errx.Wrap(err, "failed to tag user", errx.TypeInternal).
				WithDetail("user_id", turn.Conversation.UserID.String())
		}
	}

	log.Printf("🏷️  AddTags node %s attached %d tags to %s", node.ID, len(ids), target)
	return next(turn, node), nil
}

func (e *AddTagsExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeAddTags
}
