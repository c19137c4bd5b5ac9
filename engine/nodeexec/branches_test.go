package nodeexec

import (
	"context"
	"testing"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func branchesFlow() *engine.Flow {
	return enginetest.Flow("f1",
		enginetest.Node("br", "", &engine.BranchesData{Name: "age check"}),
		enginetest.Node("else", "br", enginetest.ElseArm()),
		enginetest.Node("adult", "br", enginetest.Arm(enginetest.Condition("age", "greaterThan", "18"))),
		enginetest.Node("adult-msg", "adult", &engine.MessageData{Text: "adult"}),
		enginetest.Node("minor-msg", "else", &engine.MessageData{Text: "minor"}),
	)
}

func TestBranchesExecutor_ElseArm(t *testing.T) {
	turn := newTurn(branchesFlow())
	turn.Session.SetAttribute("age", engine.AttributeTypeNumber, 15.0)

	result, err := NewBranchesExecutor(nil).Execute(context.Background(), turn, mustNode(t, turn, "br"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("else"), result)
}

func TestBranchesExecutor_FirstMatchingArm(t *testing.T) {
	turn := newTurn(branchesFlow())
	turn.Session.SetAttribute("age", engine.AttributeTypeNumber, 20.0)

	result, err := NewBranchesExecutor(nil).Execute(context.Background(), turn, mustNode(t, turn, "br"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("adult"), result)
}

func TestBranchesExecutor_MissingAttributeIsFalse(t *testing.T) {
	turn := newTurn(branchesFlow())

	result, err := NewBranchesExecutor(nil).Execute(context.Background(), turn, mustNode(t, turn, "br"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("else"), result)
}

func TestBranchesExecutor_MatchTypes(t *testing.T) {
	anyArm := &engine.BranchArmData{
		MatchType: engine.MatchAny,
		Groups: []engine.ConditionGroup{
			{MatchType: engine.MatchAll, Conditions: []engine.Condition{
				enginetest.Condition("plan", "equals", "gold"),
				enginetest.Condition("country", "equals", "PE"),
			}},
			{MatchType: engine.MatchAny, Conditions: []engine.Condition{
				{Source: engine.SourceUser, Attribute: "email", Operator: "endsWith", Value: "@example.com"},
				enginetest.Condition("vip", "equals", "true"),
			}},
		},
	}
	flow := enginetest.Flow("f1",
		enginetest.Node("br", "", &engine.BranchesData{}),
		enginetest.Node("match", "br", anyArm),
		enginetest.Node("else", "br", enginetest.ElseArm()),
	)
	turn := newTurn(flow)
	turn.Session.SetAttribute("plan", engine.AttributeTypeString, "gold")

	result, err := NewBranchesExecutor(nil).Execute(context.Background(), turn, mustNode(t, turn, "br"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("match"), result, "second group matches on user email")

	turn.User.Email = "ann@other.test"
	result, err = NewBranchesExecutor(nil).Execute(context.Background(), turn, mustNode(t, turn, "br"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("else"), result, "first group needs both conditions")
}

func TestBranchesExecutor_Sources(t *testing.T) {
	turn := newTurn(branchesFlow())
	turn.Conversation.Visit = engine.PageVisit{URL: "https://shop.test/pricing", Title: "Pricing"}
	turn.Conversation.Subject = "Refund"
	r := turn.ReplacerFor(nil)

	tests := []struct {
		cond engine.Condition
		want any
	}{
		{engine.Condition{Source: engine.SourcePageVisit, Attribute: "url"}, "https://shop.test/pricing"},
		{engine.Condition{Source: engine.SourcePageVisit, Attribute: "title"}, "Pricing"},
		{engine.Condition{Source: engine.SourceConversation, Attribute: "subject"}, "Refund"},
		{engine.Condition{Source: engine.SourceUser, Attribute: "name"}, "Ann Lee"},
		{engine.Condition{Source: engine.SourceSignedUp}, turn.User.CreatedAt},
	}

	for _, tt := range tests {
		t.Run(string(tt.cond.Source)+"/"+tt.cond.Attribute, func(t *testing.T) {
			got, ok := actualValue(turn, r, tt.cond)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := actualValue(turn, r, engine.Condition{Source: "unknown", Attribute: "x"})
	assert.False(t, ok)
}

func TestBranchesExecutor_NoElseHalts(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("br", "", &engine.BranchesData{}),
		enginetest.Node("a", "br", enginetest.Arm(enginetest.Condition("x", "equals", "1"))),
	)
	turn := newTurn(flow)

	result, err := NewBranchesExecutor(nil).Execute(context.Background(), turn, mustNode(t, turn, "br"))
	require.NoError(t, err)
	assert.Equal(t, engine.Halt(), result)
}
