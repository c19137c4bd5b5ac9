package nodeexec

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/replacer"
	"github.com/Abraxas-365/flowpilot/tool"
)

// NodeExecutor ejecuta un tipo de nodo del flujo
type NodeExecutor interface {
	Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error)
	SupportsType(nodeType engine.NodeType) bool
}

// ============================================================================
// Turn - estado mutable de un turno
// ============================================================================

// Turn todo lo que un executor puede leer o modificar durante un turno.
// Los items emitidos quedan en buffer hasta el commit del orquestador.
type Turn struct {
	Flow         *engine.Flow
	Graph        *engine.Graph
	Session      *engine.Session
	Conversation *engine.Conversation
	User         *engine.EndUser
	// Input mensaje del usuario que disparó el turno (nil en el saludo)
	Input *engine.ConversationItem
	Items []engine.ConversationItem
}

// Emit agrega un item del bot al buffer del turno
func (t *Turn) Emit(typ engine.ItemType, body string, data any) (*engine.ConversationItem, error) {
	item, err := engine.NewBotItem(t.Conversation.ID, typ, body, data)
	if err != nil {
		return nil, errx.Wrap(err, "failed to build conversation item", errx.TypeInternal).
			WithDetail("item_type", string(typ))
	}
	t.Items = append(t.Items, item)
	return &t.Items[len(t.Items)-1], nil
}

// InputText texto del mensaje del usuario ("" si no hay)
func (t *Turn) InputText() string {
	if t.Input == nil {
		return ""
	}
	return strings.TrimSpace(t.Input.Body)
}

// SwitchFlow reemplaza el flujo y el grafo del turno (GoToFlow)
func (t *Turn) SwitchFlow(flow *engine.Flow) {
	t.Flow = flow
	t.Graph = engine.NewGraph(flow)
	t.Session.SwitchFlow(flow.ID)
}

// ============================================================================
// Replacer binding
// ============================================================================

// ReplacerFor replacer enlazado a la respuesta cacheada del useTool ancestro
// más cercano del nodo (si existe)
func (t *Turn) ReplacerFor(node *engine.FlowNode) *replacer.Replacer {
	return replacer.New(t.replacerData(node, nil))
}

// ReplacerForTool igual que ReplacerFor pero exponiendo {tool.*}
func (t *Turn) ReplacerForTool(node *engine.FlowNode, tl *tool.Tool) *replacer.Replacer {
	return replacer.New(t.replacerData(node, tl))
}

func (t *Turn) replacerData(node *engine.FlowNode, tl *tool.Tool) replacer.Data {
	data := replacer.Data{
		Conversation: t.Conversation,
		User:         t.User,
		Session:      t.Session,
		Tool:         tl,
	}
	if node != nil {
		if resp, ok := t.AncestorToolResponse(node.ID, ""); ok {
			data.ToolResponse = resp
		}
	}
	return data
}

// AncestorToolResponse respuesta cacheada del nodo useTool toolNodeID o, si
// viene vacío, del useTool ancestro más cercano
func (t *Turn) AncestorToolResponse(nodeID, toolNodeID string) (json.RawMessage, bool) {
	if toolNodeID == "" {
		ancestor, ok := t.Graph.NearestAncestorOfType(nodeID, engine.NodeTypeUseTool)
		if !ok {
			return nil, false
		}
		toolNodeID = ancestor.ID
	}
	return t.Session.ToolResponse(t.Graph.Signature(toolNodeID))
}

// ============================================================================
// Helpers
// ============================================================================

// next avanza al primer hijo o termina el turno si no hay
func next(turn *Turn, node *engine.FlowNode) engine.StepResult {
	if child, ok := turn.Graph.FirstChild(node.ID); ok {
		return engine.Advance(child.ID)
	}
	return engine.Halt()
}

// armsOf hijos del nodo que son brazos del tipo dado
func armsOf(turn *Turn, node *engine.FlowNode, armType engine.NodeType) []*engine.FlowNode {
	var arms []*engine.FlowNode
	for _, child := range turn.Graph.Children(node.ID) {
		if child.Type == armType {
			arms = append(arms, child)
		}
	}
	return arms
}

// continuation regla de Cards / DynamicCards: si el hijo es un branches la
// elección queda pendiente para el próximo turno
func continuation(turn *Turn, node *engine.FlowNode) engine.StepResult {
	child, ok := turn.Graph.FirstChild(node.ID)
	if !ok {
		return engine.Halt()
	}
	if child.Type == engine.NodeTypeBranches {
		return engine.HaltAt(child.ID)
	}
	return engine.Advance(child.ID)
}
