package sessmanager

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
)

// SessionManager carga, crea y serializa el acceso al SessionContext de
// cada conversación
type SessionManager struct {
	repo    engine.SessionRepository
	flows   engine.FlowRepository
	locker  engine.Locker
	lockTTL time.Duration

	mu    sync.Mutex
	local map[kernel.ConversationID]*refLock
}

// SessionManagerConfig configuration for session manager
type SessionManagerConfig struct {
	LockTTL time.Duration // Default: 90 seconds
}

// refLock mutex local por conversación; sem con capacidad 1 permite esperar
// respetando el contexto
type refLock struct {
	sem  chan struct{}
	refs int
}

// NewSessionManager creates a new session manager. locker puede ser nil
// (un solo proceso).
func NewSessionManager(repo engine.SessionRepository, flows engine.FlowRepository, locker engine.Locker, config *SessionManagerConfig) *SessionManager {
	if config == nil {
		config = &SessionManagerConfig{LockTTL: 90 * time.Second}
	}
	if config.LockTTL == 0 {
		config.LockTTL = 90 * time.Second
	}

	return &SessionManager{
		repo:    repo,
		flows:   flows,
		locker:  locker,
		lockTTL: config.LockTTL,
		local:   make(map[kernel.ConversationID]*refLock),
	}
}

// ============================================================================
// Load
// ============================================================================

// LoadOrCreate devuelve la sesión de la conversación y su flujo activo. Si no
// existe se crea (sin guardar) sobre el flujo por defecto del AI agent.
func (m *SessionManager) LoadOrCreate(ctx context.Context, conv *engine.Conversation) (*engine.Session, *engine.Flow, error) {
	session, err := m.repo.Find(ctx, conv.ID, conv.AIAgentID)
	if err != nil {
		if !errx.IsType(err, errx.TypeNotFound) {
			return nil, nil, errx.Wrap(err, "failed to find session", errx.TypeInternal).
				WithDetail("conversation_id", conv.ID.String())
		}
		return m.createNewSession(ctx, conv)
	}

	flow, err := m.flows.FindByID(ctx, session.ActiveFlowID, conv.TenantID)
	if err == nil && flow.IsActive {
		return session, flow, nil
	}
	if err != nil && !errx.IsType(err, errx.TypeNotFound) {
		return nil, nil, errx.Wrap(err, "failed to load active flow", errx.TypeInternal).
			WithDetail("flow_id", session.ActiveFlowID.String())
	}

	// el flujo activo ya no existe o fue desactivado: vuelve al default
	log.Printf("⚠️  Active flow %s unavailable for conversation %s, falling back to default", session.ActiveFlowID, conv.ID)
	flow, err = m.defaultFlow(ctx, conv)
	if err != nil {
		return nil, nil, err
	}
	session.SwitchFlow(flow.ID)
	return session, flow, nil
}

func (m *SessionManager) createNewSession(ctx context.Context, conv *engine.Conversation) (*engine.Session, *engine.Flow, error) {
	flow, err := m.defaultFlow(ctx, conv)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("🆕 New session for conversation %s on flow %s", conv.ID, flow.ID)
	return engine.NewSession(conv, flow.ID), flow, nil
}

func (m *SessionManager) defaultFlow(ctx context.Context, conv *engine.Conversation) (*engine.Flow, error) {
	flow, err := m.flows.FindDefault(ctx, conv.TenantID, conv.AIAgentID)
	if err != nil {
		if errx.IsType(err, errx.TypeBusiness) || errx.IsType(err, errx.TypeNotFound) {
			return nil, err
		}
		return nil, errx.Wrap(err, "failed to find default flow", errx.TypeInternal).
			WithDetail("ai_agent_id", conv.AIAgentID.String())
	}
	return flow, nil
}

// Get retrieves the session of a conversation
func (m *SessionManager) Get(ctx context.Context, conversationID kernel.ConversationID, aiAgentID kernel.AIAgentID) (*engine.Session, error) {
	session, err := m.repo.Find(ctx, conversationID, aiAgentID)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return nil, err
		}
		return nil, errx.Wrap(err, "failed to get session", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}
	return session, nil
}

// List sesiones paginadas
func (m *SessionManager) List(ctx context.Context, req engine.SessionListRequest) (engine.SessionListResponse, error) {
	resp, err := m.repo.List(ctx, req)
	if err != nil {
		return engine.SessionListResponse{}, errx.Wrap(err, "failed to list sessions", errx.TypeInternal)
	}
	return resp, nil
}

// ============================================================================
// Locking
// ============================================================================

// Acquire serializa los turnos de una conversación: primero un mutex local
// por conversación y, si hay locker, el lock distribuido. Ambas esperas
// terminan si ctx se cancela.
func (m *SessionManager) Acquire(ctx context.Context, conversationID kernel.ConversationID) (func(), error) {
	l := m.localLock(conversationID)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.releaseLocal(conversationID)
		return nil, engine.ErrLockNotAcquired().
			WithDetail("conversation_id", conversationID.String()).
			WithCause(ctx.Err())
	}

	unlockLocal := func() {
		<-l.sem
		m.releaseLocal(conversationID)
	}

	if m.locker == nil {
		return unlockLocal, nil
	}

	unlock, err := m.locker.Lock(ctx, lockKey(conversationID), m.lockTTL)
	if err != nil {
		unlockLocal()
		if errx.IsType(err, errx.TypeConflict) {
			return nil, err
		}
		return nil, errx.Wrap(err, "failed to acquire conversation lock", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}

	return func() {
		// el contexto del turno puede estar cancelado
		if err := unlock(context.Background()); err != nil {
			log.Printf("⚠️  Failed to release lock for conversation %s: %v", conversationID, err)
		}
		unlockLocal()
	}, nil
}

func (m *SessionManager) localLock(conversationID kernel.ConversationID) *refLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.local[conversationID]
	if !ok {
		l = &refLock{sem: make(chan struct{}, 1)}
		m.local[conversationID] = l
	}
	l.refs++
	return l
}

func (m *SessionManager) releaseLocal(conversationID kernel.ConversationID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.local[conversationID]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(m.local, conversationID)
	}
}

func lockKey(conversationID kernel.ConversationID) string {
	return "flowpilot:lock:conversation:" + conversationID.String()
}
