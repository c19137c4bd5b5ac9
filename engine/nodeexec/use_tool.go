package nodeexec

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/metrics"
	"github.com/Abraxas-365/flowpilot/tool"
	"github.com/tidwall/gjson"
)

// Handles de las aristas de salida de un useTool
const (
	HandleSuccess = "success"
	HandleFailure = "failure"
)

// UseToolExecutor invoca un tool externo, cachea la respuesta en la sesión y
// mapea sus propiedades a atributos
type UseToolExecutor struct {
	tools    tool.ToolRepository
	executor tool.ToolExecutor
	timeout  time.Duration
}

var _ NodeExecutor = (*UseToolExecutor)(nil)

func NewUseToolExecutor(tools tool.ToolRepository, executor tool.ToolExecutor, timeout time.Duration) *UseToolExecutor {
	return &UseToolExecutor{
		tools:    tools,
		executor: executor,
		timeout:  timeout,
	}
}

func (e *UseToolExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.UseToolData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	t, err := e.tools.FindByID(ctx, data.ToolID, turn.Conversation.TenantID)
	if err != nil {
		return engine.StepResult{}, errx.Wrap(err, "failed to load tool", errx.TypeInternal).
			WithDetail("node_id", node.ID).
			WithDetail("tool_id", data.ToolID.String())
	}
	if !t.IsActive {
		log.Printf("⚠️  UseTool node %s: tool %s is inactive", node.ID, t.Name)
		return e.failure(turn, node), nil
	}

	log.Printf("🔧 UseTool node %s invoking %s", node.ID, t.Name)

	callCtx, cancel := context.WithTimeout(ctx, t.Config.GetTimeout(e.timeout))
	defer cancel()

	start := time.Now()
	resp, err := e.executor.Execute(callCtx, t, turn.ReplacerForTool(node, t))
	duration := time.Since(start)

	if err != nil {
		metrics.RecordToolCall(t.Name, "error", duration)
		log.Printf("❌ Tool %s failed after %v: %v", t.Name, duration, err)
		return e.failure(turn, node), nil
	}
	if isEmptyResponse(resp) {
		metrics.RecordToolCall(t.Name, "empty", duration)
		log.Printf("⚠️  Tool %s returned an empty response", t.Name)
		return e.failure(turn, node), nil
	}
	metrics.RecordToolCall(t.Name, "success", duration)

	turn.Session.CacheToolResponse(turn.Graph.Signature(node.ID), resp)
	mapResponse(turn.Session, t.ResponseSchema, resp)

	log.Printf("✅ Tool %s succeeded in %v", t.Name, duration)
	return e.success(turn, node), nil
}

func (e *UseToolExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeUseTool
}

func (e *UseToolExecutor) success(turn *Turn, node *engine.FlowNode) engine.StepResult {
	if child, ok := turn.Graph.ChildByHandle(node.ID, HandleSuccess); ok {
		return engine.Advance(child.ID)
	}
	// builder antiguo: un único hijo sin handle
	for _, child := range turn.Graph.Children(node.ID) {
		if child.Handle == "" {
			return engine.Advance(child.ID)
		}
	}
	return engine.Halt()
}

func (e *UseToolExecutor) failure(turn *Turn, node *engine.FlowNode) engine.StepResult {
	if child, ok := turn.Graph.ChildByHandle(node.ID, HandleFailure); ok {
		return engine.Advance(child.ID)
	}
	return engine.Halt()
}

// isEmptyResponse: vacío, null, {} o [] cuentan como respuesta sin datos
func isEmptyResponse(resp json.RawMessage) bool {
	if len(resp) == 0 {
		return true
	}
	res := gjson.ParseBytes(resp)
	switch {
	case res.Type == gjson.Null:
		return true
	case res.IsArray():
		return len(res.Array()) == 0
	case res.IsObject():
		return len(res.Map()) == 0
	}
	return false
}

// mapResponse guarda en la sesión las propiedades declaradas en el schema.
// Los arrays y objetos se guardan JSON-encoded.
func mapResponse(session *engine.Session, schema tool.ResponseSchema, resp json.RawMessage) {
	for _, b := range schema.Bindings() {
		res := gjson.GetBytes(resp, b.Path)
		if !res.Exists() {
			continue
		}

		var (
			value any
			typ   engine.AttributeType
		)
		switch {
		case res.IsArray(), res.IsObject():
			value, typ = res.Raw, engine.AttributeTypeJSON
		case res.Type == gjson.Number:
			value, typ = res.Float(), engine.AttributeTypeNumber
		case res.Type == gjson.True, res.Type == gjson.False:
			value, typ = res.Bool(), engine.AttributeTypeBoolean
		case res.Type == gjson.Null:
			value, typ = nil, engine.AttributeTypeString
		default:
			value, typ = res.String(), engine.AttributeTypeString
		}

		if b.Type != "" && b.Type != string(typ) && typ != engine.AttributeTypeJSON {
			value, typ = CoerceAttribute(res.String(), engine.AttributeType(b.Type))
		}
		session.SetAttribute(b.Attribute, typ, value)
	}
}
