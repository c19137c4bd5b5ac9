package engine

import (
	"encoding/json"
	"fmt"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// ============================================================================
// Node payloads - un struct por NodeType
// ============================================================================

// NodeData payload tipado de un nodo; el tipo concreto depende de FlowNode.Type
type NodeData interface {
	NodeType() NodeType
}

// LinkButton botón con URL (no espera input)
type LinkButton struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type MessageData struct {
	Text        string       `json:"text"`
	Buttons     []LinkButton `json:"buttons,omitempty"`
	Attachments []string     `json:"attachments,omitempty"`
}

type ButtonsData struct {
	Text string `json:"text"`
}

// ButtonArmData brazo de un nodo buttons
type ButtonArmData struct {
	Label string `json:"label"`
}

type DynamicButtonsData struct {
	Text string `json:"text"`
	// ToolNodeID nodo useTool cuya respuesta alimenta la lista; vacío = ancestro más cercano
	ToolNodeID    string `json:"toolNodeId,omitempty"`
	ListPath      string `json:"listPath"`
	LabelTemplate string `json:"labelTemplate"`
	AttributeName string `json:"attributeName,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type Card struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	URL         string       `json:"url,omitempty"`
	Buttons     []LinkButton `json:"buttons,omitempty"`
}

type CardsData struct {
	Text  string `json:"text,omitempty"`
	Cards []Card `json:"cards"`
}

type DynamicCardsData struct {
	Text                string `json:"text,omitempty"`
	ToolNodeID          string `json:"toolNodeId,omitempty"`
	ListPath            string `json:"listPath"`
	TitleTemplate       string `json:"titleTemplate"`
	DescriptionTemplate string `json:"descriptionTemplate,omitempty"`
	ImageTemplate       string `json:"imageTemplate,omitempty"`
	URLTemplate         string `json:"urlTemplate,omitempty"`
	ButtonLabel         string `json:"buttonLabel,omitempty"`
}

// MatchType combinador de condiciones
type MatchType string

const (
	MatchAll MatchType = "and"
	MatchAny MatchType = "or"
)

// ConditionSource de dónde sale el valor actual de una condición
type ConditionSource string

const (
	SourceAttribute    ConditionSource = "attribute"
	SourceUser         ConditionSource = "user"
	SourceConversation ConditionSource = "conversation"
	SourcePageVisit    ConditionSource = "pageVisit"
	SourceSignedUp     ConditionSource = "signedUp"
)

type Condition struct {
	Source    ConditionSource `json:"source"`
	Attribute string          `json:"attribute"`
	Operator  string          `json:"operator"`
	Value     string          `json:"value"`
}

type ConditionGroup struct {
	MatchType  MatchType   `json:"matchType"`
	Conditions []Condition `json:"conditions"`
}

type BranchesData struct {
	Name string `json:"name,omitempty"`
}

// BranchArmData brazo de un nodo branches
type BranchArmData struct {
	Name      string           `json:"name,omitempty"`
	IsElse    bool             `json:"isElse,omitempty"`
	MatchType MatchType        `json:"matchType,omitempty"`
	Groups    []ConditionGroup `json:"conditionGroups,omitempty"`
}

type CollectDetailsData struct {
	Text       string   `json:"text,omitempty"`
	Attributes []string `json:"attributes"`
}

type AttributeAssignment struct {
	Name  string        `json:"name"`
	Type  AttributeType `json:"type"`
	Value string        `json:"value"`
}

type SetAttributeData struct {
	Attributes []AttributeAssignment `json:"attributes"`
}

// TagTarget a quién se aplican los tags
type TagTarget string

const (
	TagTargetConversation TagTarget = "conversation"
	TagTargetUser         TagTarget = "user"
	TagTargetBoth         TagTarget = "both"
)

type AddTagsData struct {
	Tags   []string  `json:"tags"`
	Target TagTarget `json:"target,omitempty"`
}

type TransferData struct {
	Text    string         `json:"text,omitempty"`
	GroupID kernel.GroupID `json:"groupId,omitempty"`
	AgentID kernel.AgentID `json:"agentId,omitempty"`
}

type CloseConversationData struct {
	Text string `json:"text,omitempty"`
}

type GoToStepData struct {
	TargetNodeID string `json:"targetNodeId"`
}

type GoToFlowData struct {
	FlowID kernel.FlowID `json:"flowId"`
}

type UseToolData struct {
	ToolID kernel.ToolID `json:"toolId"`
}

type ArticlesData struct {
	Text       string             `json:"text,omitempty"`
	ArticleIDs []kernel.ArticleID `json:"articleIds"`
}

func (MessageData) NodeType() NodeType           { return NodeTypeMessage }
func (ButtonsData) NodeType() NodeType           { return NodeTypeButtons }
func (ButtonArmData) NodeType() NodeType         { return NodeTypeButton }
func (DynamicButtonsData) NodeType() NodeType    { return NodeTypeDynamicButtons }
func (CardsData) NodeType() NodeType             { return NodeTypeCards }
func (DynamicCardsData) NodeType() NodeType      { return NodeTypeDynamicCards }
func (BranchesData) NodeType() NodeType          { return NodeTypeBranches }
func (BranchArmData) NodeType() NodeType         { return NodeTypeBranch }
func (CollectDetailsData) NodeType() NodeType    { return NodeTypeCollectDetails }
func (SetAttributeData) NodeType() NodeType      { return NodeTypeSetAttribute }
func (AddTagsData) NodeType() NodeType           { return NodeTypeAddTags }
func (TransferData) NodeType() NodeType          { return NodeTypeTransfer }
func (CloseConversationData) NodeType() NodeType { return NodeTypeCloseConversation }
func (GoToStepData) NodeType() NodeType          { return NodeTypeGoToStep }
func (GoToFlowData) NodeType() NodeType          { return NodeTypeGoToFlow }
func (UseToolData) NodeType() NodeType           { return NodeTypeUseTool }
func (ArticlesData) NodeType() NodeType          { return NodeTypeArticles }

// newNodeData devuelve un payload vacío para el tipo dado
func newNodeData(t NodeType) (NodeData, bool) {
	switch t {
	case NodeTypeMessage:
		return &MessageData{}, true
	case NodeTypeButtons:
		return &ButtonsData{}, true
	case NodeTypeButton:
		return &ButtonArmData{}, true
	case NodeTypeDynamicButtons:
		return &DynamicButtonsData{}, true
	case NodeTypeCards:
		return &CardsData{}, true
	case NodeTypeDynamicCards:
		return &DynamicCardsData{}, true
	case NodeTypeBranches:
		return &BranchesData{}, true
	case NodeTypeBranch:
		return &BranchArmData{}, true
	case NodeTypeCollectDetails:
		return &CollectDetailsData{}, true
	case NodeTypeSetAttribute:
		return &SetAttributeData{}, true
	case NodeTypeAddTags:
		return &AddTagsData{}, true
	case NodeTypeTransfer:
		return &TransferData{}, true
	case NodeTypeCloseConversation:
		return &CloseConversationData{}, true
	case NodeTypeGoToStep:
		return &GoToStepData{}, true
	case NodeTypeGoToFlow:
		return &GoToFlowData{}, true
	case NodeTypeUseTool:
		return &UseToolData{}, true
	case NodeTypeArticles:
		return &ArticlesData{}, true
	}
	return nil, false
}

// ============================================================================
// JSON
// ============================================================================

type flowNodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	ParentID string          `json:"parentId"`
	Handle   string          `json:"handle,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodifica data según el type del nodo
func (n *FlowNode) UnmarshalJSON(b []byte) error {
	var raw flowNodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, ok := newNodeData(raw.Type)
	if !ok {
		return fmt.Errorf("unknown node type %q (node %s)", raw.Type, raw.ID)
	}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("invalid data for node %s (%s): %w", raw.ID, raw.Type, err)
		}
	}

	*n = FlowNode{
		ID:       raw.ID,
		Type:     raw.Type,
		ParentID: raw.ParentID,
		Handle:   raw.Handle,
		Data:     data,
	}
	return nil
}

func (n FlowNode) MarshalJSON() ([]byte, error) {
	var data json.RawMessage
	if n.Data != nil {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(flowNodeJSON{
		ID:       n.ID,
		Type:     n.Type,
		ParentID: n.ParentID,
		Handle:   n.Handle,
		Data:     data,
	})
}

// DataAs extrae el payload tipado del nodo
func DataAs[T NodeData](n *FlowNode) (*T, error) {
	switch d := any(n.Data).(type) {
	case *T:
		if d != nil {
			return d, nil
		}
	case T:
		return &d, nil
	}
	return nil, ErrInvalidNodeData().
		WithDetail("node_id", n.ID).
		WithDetail("node_type", n.Type.String())
}
