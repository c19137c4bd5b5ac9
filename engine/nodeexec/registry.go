package nodeexec

import (
	"time"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/comparator"
	"github.com/Abraxas-365/flowpilot/tool"
)

// Dependencies colaboradores que necesitan los executors
type Dependencies struct {
	Flows         engine.FlowRepository
	Conversations engine.ConversationStore
	Assigner      engine.AgentAssigner
	Tags          engine.TagStore
	Articles      engine.ArticleStore
	Tools         tool.ToolRepository
	ToolExecutor  tool.ToolExecutor
	Comparator    *comparator.Comparator

	ToolTimeout       time.Duration
	DynamicCardsLimit int
}

// All un executor por cada NodeType ejecutable
func All(deps Dependencies) []NodeExecutor {
	return []NodeExecutor{
		NewMessageExecutor(),
		NewButtonsExecutor(),
		NewDynamicButtonsExecutor(),
		NewCardsExecutor(),
		NewDynamicCardsExecutor(deps.DynamicCardsLimit),
		NewBranchesExecutor(deps.Comparator),
		NewCollectDetailsExecutor(deps.Conversations),
		NewSetAttributeExecutor(),
		NewAddTagsExecutor(deps.Tags),
		NewTransferExecutor(deps.Conversations, deps.Assigner),
		NewCloseConversationExecutor(deps.Conversations),
		NewGoToStepExecutor(),
		NewGoToFlowExecutor(deps.Flows),
		NewUseToolExecutor(deps.Tools, deps.ToolExecutor, deps.ToolTimeout),
		NewArticlesExecutor(deps.Articles),
	}
}
