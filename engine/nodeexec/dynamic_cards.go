package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/flowpilot/engine"
)

// DefaultDynamicCardsLimit máximo de tarjetas en un carrusel dinámico
const DefaultDynamicCardsLimit = 6

// DynamicCardsExecutor tarjetas construidas desde la respuesta cacheada de un useTool
type DynamicCardsExecutor struct {
	limit int
}

var _ NodeExecutor = (*DynamicCardsExecutor)(nil)

func NewDynamicCardsExecutor(limit int) *DynamicCardsExecutor {
	if limit <= 0 {
		limit = DefaultDynamicCardsLimit
	}
	return &DynamicCardsExecutor{limit: limit}
}

func (e *DynamicCardsExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.DynamicCardsData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	resp, ok := turn.AncestorToolResponse(node.ID, data.ToolNodeID)
	if !ok {
		log.Printf("⚠️  DynamicCards node %s: no cached tool response, ending turn", node.ID)
		return engine.Halt(), nil
	}

	items := toolList(resp, data.ListPath)
	if len(items) > e.limit {
		items = items[:e.limit]
	}
	if len(items) == 0 {
		log.Printf("⚠️  DynamicCards node %s: empty list at %q, ending turn", node.ID, data.ListPath)
		return engine.Halt(), nil
	}

	r := turn.ReplacerFor(node).WithToolResponse(nil, resp)
	cards := make([]engine.Card, 0, len(items))
	for i := range items {
		card := engine.Card{
			Title:       r.ExecuteAt(data.TitleTemplate, i),
			Description: r.ExecuteAt(data.DescriptionTemplate, i),
			ImageURL:    r.ExecuteAt(data.ImageTemplate, i),
			URL:         r.ExecuteAt(data.URLTemplate, i),
		}
		if data.ButtonLabel != "" && card.URL != "" {
			card.Buttons = []engine.LinkButton{{Label: r.Execute(data.ButtonLabel), URL: card.URL}}
		}
		cards = append(cards, card)
	}

	if _, err := turn.Emit(engine.ItemTypeCards, r.Execute(data.Text), map[string]any{"cards": cards}); err != nil {
		return engine.StepResult{}, err
	}

	log.Printf("🃏 DynamicCards node %s sent %d cards", node.ID, len(cards))
	return continuation(turn, node), nil
}

func (e *DynamicCardsExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeDynamicCards
}
