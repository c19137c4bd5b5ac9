package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ArticlesExecutor sugiere artículos de la base de conocimiento
type ArticlesExecutor struct {
	articles engine.ArticleStore
}

var _ NodeExecutor = (*ArticlesExecutor)(nil)

func NewArticlesExecutor(articles engine.ArticleStore) *ArticlesExecutor {
	return &ArticlesExecutor{articles: articles}
}

func (e *ArticlesExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.ArticlesData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	if data.Text != "" {
		if _, err := turn.Emit(engine.ItemTypeMessage, turn.ReplacerFor(node).Execute(data.Text), nil); err != nil {
			return engine.StepResult{}, err
		}
	}

	if len(data.ArticleIDs) == 0 {
		return next(turn, node), nil
	}

	found, err := e.articles.FindByIDs(ctx, turn.Conversation.TenantID, data.ArticleIDs)
	if err != nil {
		return engine.StepResult{}, errx.Wrap(err, "failed to load articles", errx.TypeInternal).
			WithDetail("node_id", node.ID)
	}

	// mismo orden que en el nodo
	byID := make(map[kernel.ArticleID]engine.Article, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	ordered := make([]engine.Article, 0, len(found))
	for _, id := range data.ArticleIDs {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}

	if len(ordered) > 0 {
		if _, err := turn.Emit(engine.ItemTypeArticles, "", map[string]any{"articles": ordered}); err != nil {
			return engine.StepResult{}, err
		}
	}

	log.Printf("📚 Articles node %s suggested %d articles", node.ID, len(ordered))
	return next(turn, node), nil
}

func (e *ArticlesExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeArticles
}
