package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/flowpilot/engine"
)

// CardsExecutor envía un carrusel de tarjetas
type CardsExecutor struct{}

var _ NodeExecutor = (*CardsExecutor)(nil)

func NewCardsExecutor() *CardsExecutor {
	return &CardsExecutor{}
}

func (e *CardsExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.CardsData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	r := turn.ReplacerFor(node)
	cards := make([]engine.Card, 0, len(data.Cards))
	for _, c := range data.Cards {
		card := engine.Card{
			Title:       r.Execute(c.Title),
			Description: r.Execute(c.Description),
			ImageURL:    r.Execute(c.ImageURL),
			URL:         r.Execute(c.URL),
		}
		for _, b := range c.Buttons {
			card.Buttons = append(card.Buttons, engine.LinkButton{Label: r.Execute(b.Label), URL: r.Execute(b.URL)})
		}
		cards = append(cards, card)
	}

	if _, err := turn.Emit(engine.ItemTypeCards, r.Execute(data.Text), map[string]any{"cards": cards}); err != nil {
		return engine.StepResult{}, err
	}

	log.Printf("🃏 Cards node %s sent %d cards", node.ID, len(cards))
	return continuation(turn, node), nil
}

func (e *CardsExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeCards
}
