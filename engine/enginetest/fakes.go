// Package enginetest implementaciones en memoria de los puertos del motor
// para tests.
package enginetest

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/Abraxas-365/craftable/storex"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/Abraxas-365/flowpilot/tool"
)

// ============================================================================
// Flows
// ============================================================================

type FlowRepository struct {
	mu    sync.Mutex
	Flows map[kernel.FlowID]*engine.Flow
}

var _ engine.FlowRepository = (*FlowRepository)(nil)

func NewFlowRepository(flows ...*engine.Flow) *FlowRepository {
	r := &FlowRepository{Flows: map[kernel.FlowID]*engine.Flow{}}
	for _, f := range flows {
		r.Flows[f.ID] = f
	}
	return r
}

func (r *FlowRepository) Save(ctx context.Context, flow engine.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Flows[flow.ID] = &flow
	return nil
}

func (r *FlowRepository) FindByID(ctx context.Context, id kernel.FlowID, tenantID kernel.TenantID) (*engine.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.Flows[id]
	if !ok || f.TenantID != tenantID {
		return nil, engine.ErrFlowNotFound().WithDetail("flow_id", id.String())
	}
	return f, nil
}

func (r *FlowRepository) FindDefault(ctx context.Context, tenantID kernel.TenantID, aiAgentID kernel.AIAgentID) (*engine.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Flows {
		if f.TenantID == tenantID && f.AIAgentID == aiAgentID && f.IsDefault && f.IsActive {
			return f, nil
		}
	}
	return nil, engine.ErrNoDefaultFlow().WithDetail("ai_agent_id", aiAgentID.String())
}

// ============================================================================
// Sessions
// ============================================================================

type SessionRepository struct {
	mu       sync.Mutex
	Sessions map[kernel.ConversationID]engine.Session
	Saves    int
}

var _ engine.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{Sessions: map[kernel.ConversationID]engine.Session{}}
}

func (r *SessionRepository) Find(ctx context.Context, conversationID kernel.ConversationID, aiAgentID kernel.AIAgentID) (*engine.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Sessions[conversationID]
	if !ok || s.AIAgentID != aiAgentID {
		return nil, engine.ErrSessionNotFound().WithDetail("conversation_id", conversationID.String())
	}
	return s.Clone(), nil
}

func (r *SessionRepository) Save(ctx context.Context, session engine.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sessions[session.ConversationID] = *session.Clone()
	r.Saves++
	return nil
}

func (r *SessionRepository) List(ctx context.Context, req engine.SessionListRequest) (engine.SessionListResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []engine.Session
	for _, s := range r.Sessions {
		if !req.TenantID.IsEmpty() && s.TenantID != req.TenantID {
			continue
		}
		if req.Status != nil && s.Status != *req.Status {
			continue
		}
		items = append(items, s)
	}
	slices.SortFunc(items, func(a, b engine.Session) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	total := len(items)
	offset := min(req.GetOffset(), total)
	end := min(offset+req.PageSize, total)
	return storex.NewPaginated(items[offset:end], total, req.Page, req.PageSize), nil
}

func (r *SessionRepository) CountWaiting(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.Sessions {
		if s.IsWaiting() {
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Conversations
// ============================================================================

// RecordedEvent evento de auditoría registrado
type RecordedEvent struct {
	ConversationID kernel.ConversationID
	Event          string
	Data           map[string]any
}

type ConversationStore struct {
	mu            sync.Mutex
	Conversations map[kernel.ConversationID]*engine.Conversation
	Users         map[kernel.UserID]*engine.EndUser
	Items         []engine.ConversationItem
	Events        []RecordedEvent
	// AppendErr fuerza un error en AppendItem
	AppendErr error
}

var _ engine.ConversationStore = (*ConversationStore)(nil)

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		Conversations: map[kernel.ConversationID]*engine.Conversation{},
		Users:         map[kernel.UserID]*engine.EndUser{},
	}
}

func (s *ConversationStore) AddConversation(conv *engine.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conversations[conv.ID] = conv
}

func (s *ConversationStore) AddUser(user *engine.EndUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users[user.ID] = user
}

// AddUserMessage agrega un mensaje del usuario y lo devuelve
func (s *ConversationStore) AddUserMessage(convID kernel.ConversationID, id kernel.MessageID, body string) engine.ConversationItem {
	item := engine.ConversationItem{
		ID:             id,
		ConversationID: convID,
		Type:           engine.ItemTypeMessage,
		Author:         engine.AuthorUser,
		Body:           body,
		CreatedAt:      time.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = append(s.Items, item)
	return item
}

// AddItem agrega un item arbitrario
func (s *ConversationStore) AddItem(item engine.ConversationItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = append(s.Items, item)
}

// BotItems items del bot de una conversación
func (s *ConversationStore) BotItems(convID kernel.ConversationID) []engine.ConversationItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []engine.ConversationItem
	for _, it := range s.Items {
		if it.ConversationID == convID && it.Author == engine.AuthorBot {
			out = append(out, it)
		}
	}
	return out
}

func (s *ConversationStore) FindConversation(ctx context.Context, id kernel.ConversationID) (*engine.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Conversations[id]
	if !ok {
		return nil, engine.ErrConversationNotFound().WithDetail("conversation_id", id.String())
	}
	clone := *c
	return &clone, nil
}

func (s *ConversationStore) FindUser(ctx context.Context, id kernel.UserID) (*engine.EndUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.Users[id]
	if !ok {
		return nil, engine.ErrUserNotFound().WithDetail("user_id", id.String())
	}
	return u, nil
}

func (s *ConversationStore) FindItem(ctx context.Context, id kernel.MessageID) (*engine.ConversationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Items {
		if s.Items[i].ID == id {
			item := s.Items[i]
			return &item, nil
		}
	}
	return nil, engine.ErrItemNotFound().WithDetail("item_id", id.String())
}

func (s *ConversationStore) LastItems(ctx context.Context, conversationID kernel.ConversationID, n int) ([]engine.ConversationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []engine.ConversationItem
	for _, it := range s.Items {
		if it.ConversationID == conversationID {
			items = append(items, it)
		}
	}
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return items, nil
}

func (s *ConversationStore) AppendItem(ctx context.Context, item *engine.ConversationItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.Items = append(s.Items, *item)
	return nil
}

func (s *ConversationStore) UpdateGroup(ctx context.Context, conversationID kernel.ConversationID, groupID kernel.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.Conversations[conversationID]; ok {
		c.GroupID = groupID
	}
	return nil
}

func (s *ConversationStore) Close(ctx context.Context, conversationID kernel.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.Conversations[conversationID]; ok {
		c.Status = engine.ConversationStatusClosed
	}
	return nil
}

func (s *ConversationStore) RecordEvent(ctx context.Context, conversationID kernel.ConversationID, event string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, RecordedEvent{ConversationID: conversationID, Event: event, Data: data})
	return nil
}

// ============================================================================
// Agents, tags, articles
// ============================================================================

type AgentAssigner struct {
	mu          sync.Mutex
	Available   map[kernel.GroupID]kernel.AgentID
	Assignments map[kernel.ConversationID]kernel.AgentID
	Err         error
}

var _ engine.AgentAssigner = (*AgentAssigner)(nil)

func NewAgentAssigner() *AgentAssigner {
	return &AgentAssigner{
		Available:   map[kernel.GroupID]kernel.AgentID{},
		Assignments: map[kernel.ConversationID]kernel.AgentID{},
	}
}

func (a *AgentAssigner) AssignTo(ctx context.Context, conversationID kernel.ConversationID, agentID kernel.AgentID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	a.Assignments[conversationID] = agentID
	return nil
}

func (a *AgentAssigner) AssignFirstAvailable(ctx context.Context, conversationID kernel.ConversationID, groupID kernel.GroupID) (kernel.AgentID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return "", a.Err
	}
	agentID := a.Available[groupID]
	if !agentID.IsEmpty() {
		a.Assignments[conversationID] = agentID
	}
	return agentID, nil
}

type TagStore struct {
	mu               sync.Mutex
	Known            map[string]kernel.TagID
	ConversationTags map[kernel.ConversationID][]kernel.TagID
	UserTags         map[kernel.UserID][]kernel.TagID
}

var _ engine.TagStore = (*TagStore)(nil)

func NewTagStore(known map[string]kernel.TagID) *TagStore {
	return &TagStore{
		Known:            known,
		ConversationTags: map[kernel.ConversationID][]kernel.TagID{},
		UserTags:         map[kernel.UserID][]kernel.TagID{},
	}
}

func (t *TagStore) FindIDsByNames(ctx context.Context, tenantID kernel.TenantID, names []string) ([]kernel.TagID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []kernel.TagID
	for _, name := range names {
		if id, ok := t.Known[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *TagStore) AttachToConversation(ctx context.Context, conversationID kernel.ConversationID, tagIDs []kernel.TagID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ConversationTags[conversationID] = union(t.ConversationTags[conversationID], tagIDs)
	return nil
}

func (t *TagStore) AttachToUser(ctx context.Context, userID kernel.UserID, tagIDs []kernel.TagID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.UserTags[userID] = union(t.UserTags[userID], tagIDs)
	return nil
}

func union(current, add []kernel.TagID) []kernel.TagID {
	for _, id := range add {
		if !slices.Contains(current, id) {
			current = append(current, id)
		}
	}
	return current
}

type ArticleStore struct {
	Articles []engine.Article
}

var _ engine.ArticleStore = (*ArticleStore)(nil)

func (a *ArticleStore) FindByIDs(ctx context.Context, tenantID kernel.TenantID, ids []kernel.ArticleID) ([]engine.Article, error) {
	var out []engine.Article
	for _, article := range a.Articles {
		if slices.Contains(ids, article.ID) {
			out = append(out, article)
		}
	}
	return out, nil
}

// ============================================================================
// Events, locks, idempotency
// ============================================================================

type EventPublisher struct {
	mu        sync.Mutex
	Published []engine.ConversationItem
	Err       error
}

var _ engine.EventPublisher = (*EventPublisher)(nil)

func (p *EventPublisher) PublishMessageCreated(ctx context.Context, tenantID kernel.TenantID, item engine.ConversationItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Published = append(p.Published, item)
	return nil
}

type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ engine.Locker = (*Locker)(nil)

func NewLocker() *Locker {
	return &Locker{held: map[string]bool{}}
}

func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (engine.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, engine.ErrLockNotAcquired().WithDetail("key", key)
	}
	l.held[key] = true
	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

type IdempotencyStore struct {
	mu   sync.Mutex
	Keys map[string]bool
}

var _ engine.IdempotencyStore = (*IdempotencyStore)(nil)

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{Keys: map[string]bool{}}
}

func (s *IdempotencyStore) Seen(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Keys[key], nil
}

func (s *IdempotencyStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Keys[key] = true
	return nil
}

// ============================================================================
// Tools
// ============================================================================

type ToolRepository struct {
	Tools map[kernel.ToolID]*tool.Tool
}

var _ tool.ToolRepository = (*ToolRepository)(nil)

func NewToolRepository(tools ...*tool.Tool) *ToolRepository {
	r := &ToolRepository{Tools: map[kernel.ToolID]*tool.Tool{}}
	for _, t := range tools {
		r.Tools[t.ID] = t
	}
	return r
}

func (r *ToolRepository) Save(ctx context.Context, t tool.Tool) error {
	r.Tools[t.ID] = &t
	return nil
}

func (r *ToolRepository) FindByID(ctx context.Context, id kernel.ToolID, tenantID kernel.TenantID) (*tool.Tool, error) {
	t, ok := r.Tools[id]
	if !ok {
		return nil, tool.ErrToolNotFound().WithDetail("tool_id", id.String())
	}
	return t, nil
}

// ToolExecutorFunc adapta una función a tool.ToolExecutor
type ToolExecutorFunc func(ctx context.Context, t *tool.Tool, r tool.Renderer) (json.RawMessage, error)

var _ tool.ToolExecutor = ToolExecutorFunc(nil)

func (f ToolExecutorFunc) Execute(ctx context.Context, t *tool.Tool, r tool.Renderer) (json.RawMessage, error) {
	return f(ctx, t, r)
}

// StaticTool executor que siempre responde resp
func StaticTool(resp string) ToolExecutorFunc {
	return func(ctx context.Context, t *tool.Tool, r tool.Renderer) (json.RawMessage, error) {
		return json.RawMessage(resp), nil
	}
}
