package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/comparator"
	"github.com/Abraxas-365/flowpilot/engine/replacer"
)

// BranchesExecutor evalúa los brazos en orden de documento; el primero que
// coincide gana y el brazo else solo se toma si ninguno coincide
type BranchesExecutor struct {
	comparator *comparator.Comparator
}

var _ NodeExecutor = (*BranchesExecutor)(nil)

func NewBranchesExecutor(c *comparator.Comparator) *BranchesExecutor {
	if c == nil {
		c = comparator.New()
	}
	return &BranchesExecutor{comparator: c}
}

func (e *BranchesExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	r := turn.ReplacerFor(node)

	var elseArm *engine.FlowNode
	for _, arm := range armsOf(turn, node, engine.NodeTypeBranch) {
		armData, err := engine.DataAs[engine.BranchArmData](arm)
		if err != nil {
			return engine.StepResult{}, err
		}
		if armData.IsElse {
			if elseArm == nil {
				elseArm = arm
			}
			continue
		}
		if e.matchArm(turn, r, armData) {
			log.Printf("🔀 Branches node %s: arm %s matched", node.ID, arm.ID)
			return engine.Advance(arm.ID), nil
		}
	}

	if elseArm != nil {
		log.Printf("🔀 Branches node %s: else arm %s", node.ID, elseArm.ID)
		return engine.Advance(elseArm.ID), nil
	}

	log.Printf("⚠️  Branches node %s: no arm matched and no else arm", node.ID)
	return engine.Halt(), nil
}

func (e *BranchesExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeBranches
}

// ============================================================================
// Evaluation
// ============================================================================

func (e *BranchesExecutor) matchArm(turn *Turn, r *replacer.Replacer, arm *engine.BranchArmData) bool {
	if len(arm.Groups) == 0 {
		return false
	}
	matchAny := arm.MatchType == engine.MatchAny
	for _, group := range arm.Groups {
		matched := e.matchGroup(turn, r, group)
		if matchAny && matched {
			return true
		}
		if !matchAny && !matched {
			return false
		}
	}
	return !matchAny
}

func (e *BranchesExecutor) matchGroup(turn *Turn, r *replacer.Replacer, group engine.ConditionGroup) bool {
	if len(group.Conditions) == 0 {
		return false
	}
	matchAny := group.MatchType == engine.MatchAny
	for _, cond := range group.Conditions {
		matched := e.matchCondition(turn, r, cond)
		if matchAny && matched {
			return true
		}
		if !matchAny && !matched {
			return false
		}
	}
	return !matchAny
}

func (e *BranchesExecutor) matchCondition(turn *Turn, r *replacer.Replacer, cond engine.Condition) bool {
	actual, ok := actualValue(turn, r, cond)
	if !ok || actual == nil {
		return false
	}
	expected := r.Execute(cond.Value)
	return e.comparator.Compare(actual, expected, comparator.Normalize(cond.Operator))
}

// actualValue valor actual de la condición según su fuente
func actualValue(turn *Turn, r *replacer.Replacer, cond engine.Condition) (any, bool) {
	switch cond.Source {
	case engine.SourceAttribute, "":
		return turn.Session.Attributes.Get(cond.Attribute)
	case engine.SourceUser:
		return r.Lookup("user." + cond.Attribute)
	case engine.SourceConversation:
		return r.Lookup("conversation." + cond.Attribute)
	case engine.SourcePageVisit:
		if turn.Conversation == nil {
			return nil, false
		}
		visit := turn.Conversation.Visit
		switch cond.Attribute {
		case "url", "":
			return visit.URL, visit.URL != ""
		case "title":
			return visit.Title, visit.Title != ""
		case "referrer":
			return visit.Referrer, visit.Referrer != ""
		}
	case engine.SourceSignedUp:
		if turn.User == nil || turn.User.CreatedAt.IsZero() {
			return nil, false
		}
		return turn.User.CreatedAt, true
	}
	return nil, false
}
