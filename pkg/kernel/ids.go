package kernel

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type ConversationID string

func NewConversationID(id string) ConversationID { return ConversationID(id) }
func (r ConversationID) String() string          { return string(r) }
func (r ConversationID) IsEmpty() bool           { return string(r) == "" }

type MessageID string

func NewMessageID(id string) MessageID { return MessageID(id) }
func (r MessageID) String() string     { return string(r) }
func (r MessageID) IsEmpty() bool      { return string(r) == "" }

type AIAgentID string

func NewAIAgentID(id string) AIAgentID { return AIAgentID(id) }
func (r AIAgentID) String() string     { return string(r) }
func (r AIAgentID) IsEmpty() bool      { return string(r) == "" }

type FlowID string

func NewFlowID(id string) FlowID { return FlowID(id) }
func (r FlowID) String() string  { return string(r) }
func (r FlowID) IsEmpty() bool   { return string(r) == "" }

type ToolID string

func NewToolID(id string) ToolID { return ToolID(id) }
func (r ToolID) String() string  { return string(r) }
func (r ToolID) IsEmpty() bool   { return string(r) == "" }

type TagID string

func NewTagID(id string) TagID { return TagID(id) }
func (r TagID) String() string { return string(r) }
func (r TagID) IsEmpty() bool  { return string(r) == "" }

// AgentID identifica a un agente humano (no el AI agent).
type AgentID string

func NewAgentID(id string) AgentID { return AgentID(id) }
func (r AgentID) String() string   { return string(r) }
func (r AgentID) IsEmpty() bool    { return string(r) == "" }

type GroupID string

func NewGroupID(id string) GroupID { return GroupID(id) }
func (r GroupID) String() string   { return string(r) }
func (r GroupID) IsEmpty() bool    { return string(r) == "" }

type ArticleID string

func NewArticleID(id string) ArticleID { return ArticleID(id) }
func (r ArticleID) String() string     { return string(r) }
func (r ArticleID) IsEmpty() bool      { return string(r) == "" }
