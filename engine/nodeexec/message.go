package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/flowpilot/engine"
)

// MessageExecutor envía un mensaje de texto con botones de enlace opcionales
type MessageExecutor struct{}

var _ NodeExecutor = (*MessageExecutor)(nil)

func NewMessageExecutor() *MessageExecutor {
	return &MessageExecutor{}
}

func (e *MessageExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.MessageData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	r := turn.ReplacerFor(node)
	text := r.Execute(data.Text)

	var payload map[string]any
	if len(data.Buttons) > 0 {
		buttons := make([]engine.LinkButton, 0, len(data.Buttons))
		for _, b := range data.Buttons {
			buttons = append(buttons, engine.LinkButton{
				Label: r.Execute(b.Label),
				URL:   r.Execute(b.URL),
			})
		}
		payload = map[string]any{"buttons": buttons}
	}

	item, err := turn.Emit(engine.ItemTypeMessage, text, payload)
	if err != nil {
		return engine.StepResult{}, err
	}
	for _, a := range data.Attachments {
		item.Attachments = append(item.Attachments, r.Execute(a))
	}

	log.Printf("💬 Message node %s: %q", node.ID, text)
	return next(turn, node), nil
}

func (e *MessageExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeMessage
}
