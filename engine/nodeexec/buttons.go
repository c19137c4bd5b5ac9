package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/slug"
)

// ButtonsExecutor muestra botones de respuesta rápida y espera la elección
// del usuario. Cada brazo "button" lleva su etiqueta.
type ButtonsExecutor struct{}

var _ NodeExecutor = (*ButtonsExecutor)(nil)

func NewButtonsExecutor() *ButtonsExecutor {
	return &ButtonsExecutor{}
}

func (e *ButtonsExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	if turn.Session.IsWaitingAt(node.ID) {
		return matchPendingButton(turn, node)
	}

	data, err := engine.DataAs[engine.ButtonsData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	r := turn.ReplacerFor(node)
	arms := armsOf(turn, node, engine.NodeTypeButton)

	pending := make([]engine.PendingButton, 0, len(arms))
	for _, arm := range arms {
		armData, err := engine.DataAs[engine.ButtonArmData](arm)
		if err != nil {
			return engine.StepResult{}, err
		}
		pending = append(pending, engine.PendingButton{
			Label:        r.Execute(armData.Label),
			TargetNodeID: arm.ID,
		})
	}

	if _, err := turn.Emit(engine.ItemTypeMessage, r.Execute(data.Text), buttonsPayload(pending)); err != nil {
		return engine.StepResult{}, err
	}

	if len(pending) == 0 {
		log.Printf("⚠️  Buttons node %s has no buttons, ending turn", node.ID)
		return engine.Halt(), nil
	}

	turn.Session.PendingButtons = pending
	log.Printf("⏸️  Buttons node %s waiting for choice (%d options)", node.ID, len(pending))
	return engine.Suspend(), nil
}

func (e *ButtonsExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeButtons
}

// matchPendingButton segunda pasada: compara el input (slug) con las
// etiquetas mostradas. Sin coincidencia el turno termina sin manejar.
func matchPendingButton(turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	input := turn.InputText()
	for _, b := range turn.Session.PendingButtons {
		if slug.Equal(input, b.Label) {
			turn.Session.PendingButtons = nil
			log.Printf("👆 Button %q selected on node %s", b.Label, node.ID)
			return engine.Advance(b.TargetNodeID), nil
		}
	}

	log.Printf("🤷 Input %q does not match any button of node %s", input, node.ID)
	return engine.Reject(), nil
}

func buttonsPayload(pending []engine.PendingButton) map[string]any {
	labels := make([]string, 0, len(pending))
	for _, b := range pending {
		labels = append(labels, b.Label)
	}
	return map[string]any{"quick_replies": labels}
}
