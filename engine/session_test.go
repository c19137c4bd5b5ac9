package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_KeepInsertionOrder(t *testing.T) {
	var attrs Attributes
	attrs.Set("b", AttributeTypeString, "1")
	attrs.Set("a", AttributeTypeNumber, 2)
	attrs.Set("b", AttributeTypeString, "3")

	assert.Equal(t, []string{"b", "a"}, attrs.Names())
	v, ok := attrs.Get("b")
	require.True(t, ok)
	assert.Equal(t, "3", v)

	_, ok = attrs.Get("missing")
	assert.False(t, ok)
}

func TestSession_CursorTransitions(t *testing.T) {
	s := NewSession(&Conversation{ID: "c1", AIAgentID: "a1", TenantID: "t1"}, "f1")
	assert.Equal(t, SessionStatusActive, s.Status)
	assert.False(t, s.HasPendingNode())

	s.WaitForUserInput("menu")
	assert.True(t, s.IsWaitingAt("menu"))
	assert.False(t, s.IsWaitingAt("other"))

	s.MoveTo("next")
	assert.Equal(t, SessionStatusActive, s.Status)
	assert.Equal(t, "next", s.CurrentNode())

	s.ClearCursor()
	assert.Nil(t, s.CurrentNodeID)
	assert.Equal(t, "", s.CurrentNode())
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession(&Conversation{ID: "c1"}, "f1")
	s.SetAttribute("age", AttributeTypeNumber, 15)
	s.CacheToolResponse("n1", json.RawMessage(`{"a":1}`))
	s.MoveTo("n1")

	clone := s.Clone()
	clone.SetAttribute("age", AttributeTypeNumber, 99)
	clone.CacheToolResponse("n2", json.RawMessage(`{}`))
	clone.MoveTo("n2")

	age, _ := s.Attributes.Get("age")
	assert.Equal(t, 15, age)
	_, ok := s.ToolResponse("n2")
	assert.False(t, ok)
	assert.Equal(t, "n1", s.CurrentNode())
}

func TestSession_SwitchFlowResetsCursor(t *testing.T) {
	s := NewSession(&Conversation{ID: "c1"}, "f1")
	s.WaitForUserInput("menu")
	s.PendingButtons = []PendingButton{{Label: "Sales"}}

	s.SwitchFlow("f2")
	assert.Equal(t, "f2", s.ActiveFlowID.String())
	assert.Nil(t, s.CurrentNodeID)
	assert.Empty(t, s.PendingButtons)
	assert.False(t, s.IsWaiting())
}

func TestConversation_BotCanReply(t *testing.T) {
	conv := Conversation{AIAgentID: "a1", Status: ConversationStatusOpen}
	assert.True(t, conv.BotCanReply())

	conv.AssigneeID = "agent-7"
	assert.False(t, conv.BotCanReply())

	conv.AssigneeID = ""
	conv.Status = ConversationStatusClosed
	assert.False(t, conv.BotCanReply())
}
