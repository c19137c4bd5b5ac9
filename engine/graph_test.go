package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFlow = `{
  "id": "f1",
  "tenant_id": "t1",
  "nodes": [
    {"id": "greet", "type": "message", "parentId": "start", "data": {"text": "Hi {name}"}},
    {"id": "menu", "type": "buttons", "parentId": "greet", "data": {"text": "Pick one"}},
    {"id": "sales", "type": "button", "parentId": "menu", "data": {"label": "Sales"}},
    {"id": "support", "type": "button", "parentId": "menu", "data": {"label": "Support"}},
    {"id": "sales-msg", "type": "message", "parentId": "sales", "data": {"text": "Sales here"}},
    {"id": "lookup", "type": "useTool", "parentId": "support", "data": {"toolId": "tool-1"}},
    {"id": "ok", "type": "message", "parentId": "lookup", "handle": "success", "data": {"text": "found"}},
    {"id": "ko", "type": "message", "parentId": "lookup", "handle": "failure", "data": {"text": "not found"}}
  ]
}`

func loadSample(t *testing.T) *Graph {
	t.Helper()
	var flow Flow
	require.NoError(t, json.Unmarshal([]byte(sampleFlow), &flow))
	return NewGraph(&flow)
}

func TestFlowNode_DecodesTypedData(t *testing.T) {
	g := loadSample(t)

	node, ok := g.Node("greet")
	require.True(t, ok)
	data, err := DataAs[MessageData](node)
	require.NoError(t, err)
	assert.Equal(t, "Hi {name}", data.Text)

	tool, _ := g.Node("lookup")
	toolData, err := DataAs[UseToolData](tool)
	require.NoError(t, err)
	assert.Equal(t, "tool-1", toolData.ToolID.String())

	_, err = DataAs[ButtonsData](tool)
	assert.Error(t, err)
}

func TestFlowNode_RejectsUnknownType(t *testing.T) {
	var node FlowNode
	err := json.Unmarshal([]byte(`{"id":"x","type":"teleport","parentId":"start"}`), &node)
	assert.Error(t, err)
}

func TestFlowNode_MarshalRoundTripKeepsData(t *testing.T) {
	g := loadSample(t)
	node, _ := g.Node("ok")

	raw, err := json.Marshal(node)
	require.NoError(t, err)

	var back FlowNode
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "success", back.Handle)
	data, err := DataAs[MessageData](&back)
	require.NoError(t, err)
	assert.Equal(t, "found", data.Text)
}

func TestGraph_Navigation(t *testing.T) {
	g := loadSample(t)

	start, ok := g.StartNode()
	require.True(t, ok)
	assert.Equal(t, "greet", start.ID)

	kids := g.Children("menu")
	require.Len(t, kids, 2)
	assert.Equal(t, "sales", kids[0].ID)
	assert.Equal(t, "support", kids[1].ID)

	success, ok := g.ChildByHandle("lookup", "success")
	require.True(t, ok)
	assert.Equal(t, "ok", success.ID)

	_, ok = g.ChildByHandle("greet", "failure")
	assert.False(t, ok)
}

func TestGraph_ResolveSkipsArms(t *testing.T) {
	g := loadSample(t)

	node, ok := g.Resolve("sales")
	require.True(t, ok)
	assert.Equal(t, "sales-msg", node.ID)

	node, ok = g.Resolve("greet")
	require.True(t, ok)
	assert.Equal(t, "greet", node.ID)
}

func TestGraph_AncestorIDsExcludeRootChildren(t *testing.T) {
	g := loadSample(t)

	assert.Equal(t, []string{"support", "menu"}, g.AncestorIDs("lookup"))
	assert.Empty(t, g.AncestorIDs("menu"))
	assert.Empty(t, g.AncestorIDs("greet"))
	assert.Equal(t, "lookup|support>menu", g.Signature("lookup"))
}

func TestGraph_NearestAncestorOfType(t *testing.T) {
	g := loadSample(t)

	tool, ok := g.NearestAncestorOfType("ok", NodeTypeUseTool)
	require.True(t, ok)
	assert.Equal(t, "lookup", tool.ID)

	_, ok = g.NearestAncestorOfType("sales-msg", NodeTypeUseTool)
	assert.False(t, ok)
}

func TestNodeType_Capabilities(t *testing.T) {
	greeting := map[NodeType]bool{}
	waiting := map[NodeType]bool{}
	for _, nt := range ExecutableNodeTypes {
		greeting[nt] = nt.CanUseAsGreetingNode()
		waiting[nt] = nt.WaitsForUserInput()
	}

	assert.Len(t, ExecutableNodeTypes, 15)
	assert.True(t, greeting[NodeTypeMessage])
	assert.True(t, greeting[NodeTypeDynamicCards])
	assert.False(t, greeting[NodeTypeDynamicButtons])
	assert.False(t, greeting[NodeTypeUseTool])

	assert.True(t, waiting[NodeTypeCollectDetails])
	assert.False(t, waiting[NodeTypeCards])
	assert.True(t, NodeTypeButton.IsArm())
	assert.True(t, NodeTypeBranch.IsValid())
}

func TestDataAs_PointerValueAndMismatch(t *testing.T) {
	byPointer := &FlowNode{ID: "p", Type: NodeTypeMessage, Data: &MessageData{Text: "ptr"}}
	byValue := &FlowNode{ID: "v", Type: NodeTypeMessage, Data: MessageData{Text: "val"}}
	wrong := &FlowNode{ID: "w", Type: NodeTypeButtons, Data: &ButtonsData{Text: "menu"}}

	data, err := DataAs[MessageData](byPointer)
	require.NoError(t, err)
	assert.Equal(t, "ptr", data.Text)

	data, err = DataAs[MessageData](byValue)
	require.NoError(t, err)
	assert.Equal(t, "val", data.Text)

	_, err = DataAs[MessageData](wrong)
	require.Error(t, err)
}
