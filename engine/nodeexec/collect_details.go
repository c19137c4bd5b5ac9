package nodeexec

import (
	"context"
	"log"
	"slices"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
)

// CollectDetailsExecutor muestra un formulario y, en la segunda pasada,
// guarda los valores enviados como atributos de sesión
type CollectDetailsExecutor struct {
	store engine.ConversationStore
}

var _ NodeExecutor = (*CollectDetailsExecutor)(nil)

func NewCollectDetailsExecutor(store engine.ConversationStore) *CollectDetailsExecutor {
	return &CollectDetailsExecutor{store: store}
}

func (e *CollectDetailsExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.CollectDetailsData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	if turn.Session.IsWaitingAt(node.ID) {
		return e.submit(ctx, turn, node, data)
	}

	text := turn.ReplacerFor(node).Execute(data.Text)
	payload := map[string]any{"attributes": data.Attributes}
	if _, err := turn.Emit(engine.ItemTypeCollectDetailsForm, text, payload); err != nil {
		return engine.StepResult{}, err
	}

	log.Printf("📝 CollectDetails node %s waiting for %v", node.ID, data.Attributes)
	return engine.Suspend(), nil
}

// submit acepta el envío solo si los dos últimos items son el formulario y
// los datos enviados
func (e *CollectDetailsExecutor) submit(ctx context.Context, turn *Turn, node *engine.FlowNode, data *engine.CollectDetailsData) (engine.StepResult, error) {
	items, err := e.store.LastItems(ctx, turn.Conversation.ID, 2)
	if err != nil {
		return engine.StepResult{}, errx.Wrap(err, "failed to load last conversation items", errx.TypeInternal).
			WithDetail("conversation_id", turn.Conversation.ID.String())
	}

	if len(items) != 2 ||
		items[0].Type != engine.ItemTypeCollectDetailsForm ||
		items[1].Type != engine.ItemTypeSubmittedFormData {
		log.Printf("🤷 CollectDetails node %s: last items are not a form submission", node.ID)
		return engine.Reject(), nil
	}

	values := submittedValues(&items[1])
	names := data.Attributes
	if len(names) == 0 {
		names = sortedKeys(values)
	}
	for _, name := range names {
		value, ok := values[name]
		if !ok {
			continue
		}
		turn.Session.SetAttribute(name, inferAttributeType(value), value)
	}

	log.Printf("✅ CollectDetails node %s stored %d values", node.ID, len(values))
	return next(turn, node), nil
}

func (e *CollectDetailsExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeCollectDetails
}

// submittedValues acepta {"values": {...}} o el objeto plano
func submittedValues(item *engine.ConversationItem) map[string]any {
	data := item.DataMap()
	if nested, ok := data["values"].(map[string]any); ok {
		return nested
	}
	return data
}

func inferAttributeType(v any) engine.AttributeType {
	switch v.(type) {
	case float64, int, int64:
		return engine.AttributeTypeNumber
	case bool:
		return engine.AttributeTypeBoolean
	case string, nil:
		return engine.AttributeTypeString
	}
	return engine.AttributeTypeJSON
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
