package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/slug"
	"github.com/tidwall/gjson"
)

// DynamicButtonsExecutor botones generados a partir de la respuesta cacheada
// de un nodo useTool
type DynamicButtonsExecutor struct{}

var _ NodeExecutor = (*DynamicButtonsExecutor)(nil)

func NewDynamicButtonsExecutor() *DynamicButtonsExecutor {
	return &DynamicButtonsExecutor{}
}

func (e *DynamicButtonsExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.DynamicButtonsData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	if turn.Session.IsWaitingAt(node.ID) {
		return e.match(turn, node, data)
	}

	resp, ok := turn.AncestorToolResponse(node.ID, data.ToolNodeID)
	if !ok {
		log.Printf("⚠️  DynamicButtons node %s: no cached tool response, ending turn", node.ID)
		return engine.Halt(), nil
	}

	items := toolList(resp, data.ListPath)
	if data.Limit > 0 && len(items) > data.Limit {
		items = items[:data.Limit]
	}
	if len(items) == 0 {
		log.Printf("⚠️  DynamicButtons node %s: empty list at %q, ending turn", node.ID, data.ListPath)
		return engine.Halt(), nil
	}

	r := turn.ReplacerFor(node).WithToolResponse(nil, resp)
	target := ""
	if child, ok := turn.Graph.FirstChild(node.ID); ok {
		target = child.ID
	}

	pending := make([]engine.PendingButton, 0, len(items))
	for i, item := range items {
		label := item.String()
		if data.LabelTemplate != "" {
			label = r.ExecuteAt(data.LabelTemplate, i)
		}
		pending = append(pending, engine.PendingButton{Label: label, TargetNodeID: target})
	}

	if _, err := turn.Emit(engine.ItemTypeMessage, r.Execute(data.Text), buttonsPayload(pending)); err != nil {
		return engine.StepResult{}, err
	}

	turn.Session.PendingButtons = pending
	log.Printf("⏸️  DynamicButtons node %s waiting for choice (%d options)", node.ID, len(pending))
	return engine.Suspend(), nil
}

func (e *DynamicButtonsExecutor) match(turn *Turn, node *engine.FlowNode, data *engine.DynamicButtonsData) (engine.StepResult, error) {
	input := turn.InputText()
	for _, b := range turn.Session.PendingButtons {
		if !slug.Equal(input, b.Label) {
			continue
		}
		if data.AttributeName != "" {
			turn.Session.SetAttribute(data.AttributeName, engine.AttributeTypeString, b.Label)
		}
		turn.Session.PendingButtons = nil
		log.Printf("👆 Dynamic button %q selected on node %s", b.Label, node.ID)
		if b.TargetNodeID == "" {
			return engine.Halt(), nil
		}
		return engine.Advance(b.TargetNodeID), nil
	}

	log.Printf("🤷 Input %q does not match any dynamic button of node %s", input, node.ID)
	return engine.Reject(), nil
}

func (e *DynamicButtonsExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeDynamicButtons
}

// toolList elementos de la lista en path ("" = la respuesta misma)
func toolList(resp []byte, path string) []gjson.Result {
	res := gjson.ParseBytes(resp)
	if path != "" {
		res = res.Get(path)
	}
	if !res.IsArray() {
		return nil
	}
	return res.Array()
}
