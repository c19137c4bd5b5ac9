package engineinfra

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRowRoundTrip(t *testing.T) {
	conv := &engine.Conversation{ID: "conv-1", TenantID: "tenant-1", AIAgentID: "bot"}
	signup := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	session := engine.NewSession(conv, "flow-1")
	session.SetAttribute("age", engine.AttributeTypeNumber, float64(15))
	session.SetAttribute("signup", engine.AttributeTypeDate, signup)
	session.SetAttribute("items", engine.AttributeTypeJSON, `[{"sku":"a"}]`)
	session.CacheToolResponse("lookup|arm", json.RawMessage(`{"status":"shipped"}`))
	session.PendingButtons = []engine.PendingButton{{Label: "Support", TargetNodeID: "arm-1"}}
	session.WaitForUserInput("b1")

	row, err := toDBSession(*session)
	require.NoError(t, err)
	assert.True(t, row.CurrentNodeID.Valid)

	got, err := toDomainSession(row)
	require.NoError(t, err)

	assert.Equal(t, "b1", got.CurrentNode())
	assert.True(t, got.IsWaiting())
	assert.Equal(t, []string{"age", "signup", "items"}, got.Attributes.Names())

	age, _ := got.Attributes.Get("age")
	assert.Equal(t, float64(15), age)
	when, _ := got.Attributes.Get("signup")
	require.IsType(t, time.Time{}, when)
	assert.True(t, signup.Equal(when.(time.Time)))
	items, _ := got.Attributes.Get("items")
	assert.Equal(t, `[{"sku":"a"}]`, items)

	resp, ok := got.ToolResponse("lookup|arm")
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"shipped"}`, string(resp))
	assert.Equal(t, session.PendingButtons, got.PendingButtons)
}

func TestSessionRowWithoutCursor(t *testing.T) {
	session := engine.NewSession(&engine.Conversation{ID: "conv-1"}, "flow-1")

	row, err := toDBSession(*session)
	require.NoError(t, err)
	assert.False(t, row.CurrentNodeID.Valid)
	assert.JSONEq(t, `[]`, string(row.Attributes))
	assert.JSONEq(t, `{}`, string(row.ToolResponses))

	got, err := toDomainSession(row)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentNodeID)
	assert.Empty(t, got.Attributes)
}

func TestFlowRowDecodesTypedNodes(t *testing.T) {
	flow := engine.Flow{
		ID:       "flow-1",
		TenantID: "tenant-1",
		Nodes: []engine.FlowNode{
			{ID: "m1", Type: engine.NodeTypeMessage, ParentID: engine.RootParentID, Data: &engine.MessageData{Text: "Hi {user.firstName}"}},
			{ID: "b1", Type: engine.NodeTypeButtons, ParentID: "m1", Data: &engine.ButtonsData{Text: "Pick"}},
		},
	}

	row, err := toDBFlow(flow)
	require.NoError(t, err)

	got, err := toDomainFlow(row)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)

	msg, err := engine.DataAs[engine.MessageData](&got.Nodes[0])
	require.NoError(t, err)
	assert.Equal(t, "Hi {user.firstName}", msg.Text)
	assert.Equal(t, "m1", got.Nodes[1].ParentID)
}

func TestItemRowKeepsEmptyData(t *testing.T) {
	item, err := engine.NewBotItem("conv-1", engine.ItemTypeMessage, "hello", nil)
	require.NoError(t, err)

	row := toDBItem(item)
	assert.Equal(t, "null", string(row.Data))

	got := toDomainItem(row)
	assert.Nil(t, got.Data)
	assert.Equal(t, item.ID, got.ID)
}
