package nodeexec

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/spf13/cast"
)

// SetAttributeExecutor asigna atributos de sesión (valores con tokens)
type SetAttributeExecutor struct{}

var _ NodeExecutor = (*SetAttributeExecutor)(nil)

func NewSetAttributeExecutor() *SetAttributeExecutor {
	return &SetAttributeExecutor{}
}

func (e *SetAttributeExecutor) Execute(ctx context.Context, turn *Turn, node *engine.FlowNode) (engine.StepResult, error) {
	data, err := engine.DataAs[engine.SetAttributeData](node)
	if err != nil {
		return engine.StepResult{}, err
	}

	r := turn.ReplacerFor(node)
	for _, a := range data.Attributes {
		if a.Name == "" {
			continue
		}
		typ := a.Type
		if typ == "" {
			typ = engine.AttributeTypeString
		}
		value, typ := CoerceAttribute(r.Execute(a.Value), typ)
		turn.Session.SetAttribute(a.Name, typ, value)
	}

	log.Printf("🏷️  SetAttribute node %s set %d attributes", node.ID, len(data.Attributes))
	return next(turn, node), nil
}

func (e *SetAttributeExecutor) SupportsType(nodeType engine.NodeType) bool {
	return nodeType == engine.NodeTypeSetAttribute
}

// CoerceAttribute convierte el texto al tipo declarado. Si no se puede, el
// valor queda como string.
func CoerceAttribute(raw string, typ engine.AttributeType) (any, engine.AttributeType) {
	trimmed := strings.TrimSpace(raw)
	switch typ {
	case engine.AttributeTypeNumber:
		if v, err := cast.ToFloat64E(trimmed); err == nil {
			return v, typ
		}
	case engine.AttributeTypeBoolean:
		if v, err := cast.ToBoolE(trimmed); err == nil {
			return v, typ
		}
	case engine.AttributeTypeDate:
		if v, err := cast.ToTimeE(trimmed); err == nil {
			return v, typ
		}
	case engine.AttributeTypeJSON:
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v, typ
		}
	case engine.AttributeTypeString:
		return raw, typ
	}
	return raw, engine.AttributeTypeString
}
