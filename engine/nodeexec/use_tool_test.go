package nodeexec

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/enginetest"
	"github.com/Abraxas-365/flowpilot/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderTool() *tool.Tool {
	return &tool.Tool{
		ID:       "t1",
		TenantID: enginetest.TenantID,
		Name:     "Order lookup",
		Type:     tool.ToolTypeHTTP,
		Config:   tool.ToolConfig{URL: "https://api.test/orders/{order_id}"},
		ResponseSchema: tool.ResponseSchema{Properties: map[string]tool.PropertyBinding{
			"status":   {},
			"items":    {Path: "order.items", Attribute: "order_items"},
			"total":    {Path: "order.total"},
			"shipped":  {Path: "order.shipped"},
			"not_here": {Path: "missing.path"},
		}},
		IsActive: true,
	}
}

func toolFlow() *engine.Flow {
	return enginetest.Flow("f1",
		enginetest.Node("menu", "", &engine.ButtonsData{Text: "menu"}),
		enginetest.Node("arm", "menu", &engine.ButtonArmData{Label: "Track"}),
		enginetest.Node("lookup", "arm", &engine.UseToolData{ToolID: "t1"}),
		enginetest.HandleNode("ok", "lookup", HandleSuccess, &engine.MessageData{Text: "Your order is {tool.response.status}"}),
		enginetest.HandleNode("ko", "lookup", HandleFailure, &engine.MessageData{Text: "Could not find it"}),
	)
}

func TestUseToolExecutor_Success(t *testing.T) {
	var rendered string
	executor := enginetest.ToolExecutorFunc(func(ctx context.Context, tl *tool.Tool, r tool.Renderer) (json.RawMessage, error) {
		rendered = r.Execute(tl.Config.URL)
		return json.RawMessage(`{"status":"shipped","order":{"items":["lamp","desk"],"total":99.5,"shipped":true}}`), nil
	})
	turn := newTurn(toolFlow())
	turn.Session.SetAttribute("order_id", engine.AttributeTypeString, "A-1")

	e := NewUseToolExecutor(enginetest.NewToolRepository(orderTool()), executor, time.Second)
	result, err := e.Execute(context.Background(), turn, mustNode(t, turn, "lookup"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("ok"), result)
	assert.Equal(t, "https://api.test/orders/A-1", rendered)

	// clave: nodo + ancestros (sin incluir la raíz)
	_, ok := turn.Session.ToolResponse("lookup|arm")
	assert.True(t, ok)

	assert.Equal(t, []string{"order_id", "order_items", "shipped", "status", "total"}, turn.Session.Attributes.Names())
	items, _ := turn.Session.Attributes.Get("order_items")
	assert.Equal(t, `["lamp","desk"]`, items)
	total, _ := turn.Session.Attributes.Get("total")
	assert.Equal(t, 99.5, total)

	// el hijo ve la respuesta del ancestro
	next := mustNode(t, turn, "ok")
	assert.Equal(t, "Your order is shipped", turn.ReplacerFor(next).Execute("Your order is {tool.response.status}"))
}

func TestUseToolExecutor_FailureEdges(t *testing.T) {
	tests := []struct {
		name     string
		executor enginetest.ToolExecutorFunc
	}{
		{"error", func(ctx context.Context, tl *tool.Tool, r tool.Renderer) (json.RawMessage, error) {
			return nil, errors.New("boom")
		}},
		{"empty", enginetest.StaticTool("")},
		{"null", enginetest.StaticTool("null")},
		{"empty object", enginetest.StaticTool(`{}`)},
		{"empty array", enginetest.StaticTool(` [ ] `)},
		{"timeout", func(ctx context.Context, tl *tool.Tool, r tool.Renderer) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := newTurn(toolFlow())
			e := NewUseToolExecutor(enginetest.NewToolRepository(orderTool()), tt.executor, 20*time.Millisecond)

			result, err := e.Execute(context.Background(), turn, mustNode(t, turn, "lookup"))
			require.NoError(t, err)
			assert.Equal(t, engine.Advance("ko"), result)
			assert.Empty(t, turn.Session.ToolResponses)
		})
	}
}

func TestUseToolExecutor_FailureWithoutEdgeHalts(t *testing.T) {
	flow := enginetest.Flow("f1", enginetest.Node("lookup", "", &engine.UseToolData{ToolID: "t1"}))
	turn := newTurn(flow)
	e := NewUseToolExecutor(enginetest.NewToolRepository(orderTool()), enginetest.StaticTool(""), time.Second)

	result, err := e.Execute(context.Background(), turn, mustNode(t, turn, "lookup"))
	require.NoError(t, err)
	assert.Equal(t, engine.Halt(), result)
}

func TestUseToolExecutor_MissingToolIsError(t *testing.T) {
	turn := newTurn(toolFlow())
	e := NewUseToolExecutor(enginetest.NewToolRepository(), enginetest.StaticTool(`{}`), time.Second)

	_, err := e.Execute(context.Background(), turn, mustNode(t, turn, "lookup"))
	assert.Error(t, err)
}
