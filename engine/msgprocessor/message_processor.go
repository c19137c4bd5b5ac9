package msgprocessor

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/flowexec"
	"github.com/Abraxas-365/flowpilot/engine/nodeexec"
	"github.com/Abraxas-365/flowpilot/engine/sessmanager"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/Abraxas-365/flowpilot/pkg/metrics"
)

// Skip reasons
const (
	SkipConversationClosed = "conversation closed"
	SkipAssignedToHuman    = "conversation assigned to a human agent"
	SkipNoAIAgent          = "conversation has no AI agent"
	SkipDuplicateTrigger   = "trigger already processed"
	SkipNotUserMessage     = "triggering item is not a user message"
)

// Config límites del procesador de turnos
type Config struct {
	TurnTimeout    time.Duration
	IdempotencyTTL time.Duration
}

// MessageProcessor punto de entrada del motor: un turno por evento entrante
type MessageProcessor struct {
	conversations  engine.ConversationStore
	sessionManager *sessmanager.SessionManager
	flowExec       *flowexec.FlowExecutor
	idempotency    engine.IdempotencyStore
	turnTimeout    time.Duration
	idempotencyTTL time.Duration
}

var _ engine.TurnProcessor = (*MessageProcessor)(nil)

// NewMessageProcessor crea una nueva instancia del procesador. idempotency
// puede ser nil (sin deduplicación de triggers).
func NewMessageProcessor(
	conversations engine.ConversationStore,
	sessionManager *sessmanager.SessionManager,
	flowExec *flowexec.FlowExecutor,
	idempotency engine.IdempotencyStore,
	cfg Config,
) *MessageProcessor {
	if cfg.TurnTimeout == 0 {
		cfg.TurnTimeout = 60 * time.Second
	}
	if cfg.IdempotencyTTL == 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}

	return &MessageProcessor{
		conversations:  conversations,
		sessionManager: sessionManager,
		flowExec:       flowExec,
		idempotency:    idempotency,
		turnTimeout:    cfg.TurnTimeout,
		idempotencyTTL: cfg.IdempotencyTTL,
	}
}

// TriggerKey clave de idempotencia de un turno: el mensaje que lo disparó o,
// para el saludo, la creación de la conversación
func TriggerKey(conv *engine.Conversation, messageID *kernel.MessageID) string {
	if messageID != nil && !messageID.IsEmpty() {
		return fmt.Sprintf("%s:%s", conv.ID, *messageID)
	}
	return fmt.Sprintf("%s:greeting:%d", conv.ID, conv.CreatedAt.Unix())
}

// ============================================================================
// RunTurn
// ============================================================================

// RunTurn procesa un evento entrante de la conversación. triggeringMessageID
// nil significa saludo (conversación nueva).
func (mp *MessageProcessor) RunTurn(ctx context.Context, conversationID kernel.ConversationID, triggeringMessageID *kernel.MessageID) (result *engine.TurnResult, err error) {
	startTime := time.Now()
	log.Printf("🚀 Processing turn for conversation %s (message: %v)", conversationID, messageLabel(triggeringMessageID))

	defer func() {
		if r := recover(); r != nil {
			logx.Error("Panic processing turn for conversation %s: %v\n%s", conversationID, r, debug.Stack())
			result = nil
			err = errx.New("turn processing panicked", errx.TypeInternal).
				WithDetail("conversation_id", conversationID.String()).
				WithDetail("panic", fmt.Sprint(r))
		}

		outcome := string(engine.TurnFailed)
		if result != nil {
			outcome = string(result.Outcome)
		}
		metrics.RecordTurn(outcome, time.Since(startTime))
	}()

	ctx, cancel := context.WithTimeout(ctx, mp.turnTimeout)
	defer cancel()

	// 1. Conversación y gating
	conv, err := mp.conversations.FindConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if reason, ok := skipReason(conv); !ok {
		log.Printf("⏭️  Skipping turn for conversation %s: %s", conversationID, reason)
		return engine.Skipped(conversationID, reason), nil
	}

	// 2. Idempotencia
	key := TriggerKey(conv, triggeringMessageID)
	if seen, err := mp.seen(ctx, key); err != nil || seen {
		if err != nil {
			return nil, err
		}
		log.Printf("⏭️  Trigger %s already processed", key)
		return engine.Skipped(conversationID, SkipDuplicateTrigger), nil
	}

	// 3. Un turno a la vez por conversación
	release, err := mp.sessionManager.Acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	// otro turno pudo consumir el trigger mientras esperábamos el lock
	if seen, err := mp.seen(ctx, key); err != nil || seen {
		if err != nil {
			return nil, err
		}
		return engine.Skipped(conversationID, SkipDuplicateTrigger), nil
	}

	turn, skip, err := mp.buildTurn(ctx, conv, triggeringMessageID)
	if err != nil {
		return nil, err
	}
	if skip != "" {
		return engine.Skipped(conversationID, skip), nil
	}

	// 4. Ejecutar el flujo
	result, err = mp.flowExec.Execute(ctx, turn)

	if result.Committed() {
		mp.mark(ctx, key)
	}
	if err != nil {
		logx.Error("Turn for conversation %s ended with error: %v", conversationID, err)
		return result, err
	}

	log.Printf("✅ Turn for conversation %s finished: %s (%d items) in %v",
		conversationID, result.Outcome, len(result.ItemIDs), time.Since(startTime))
	return result, nil
}

// buildTurn carga usuario, input y sesión
func (mp *MessageProcessor) buildTurn(ctx context.Context, conv *engine.Conversation, messageID *kernel.MessageID) (*nodeexec.Turn, string, error) {
	var input *engine.ConversationItem
	if messageID != nil && !messageID.IsEmpty() {
		item, err := mp.conversations.FindItem(ctx, *messageID)
		if err != nil {
			return nil, "", err
		}
		if item.ConversationID != conv.ID || !item.IsFromUser() {
			return nil, SkipNotUserMessage, nil
		}
		input = item
	}

	user, err := mp.conversations.FindUser(ctx, conv.UserID)
	if err != nil {
		if !errx.IsType(err, errx.TypeNotFound) {
			return nil, "", err
		}
		// sin usuario los tokens {user.*} quedan sin resolver
		log.Printf("⚠️  User %s not found for conversation %s", conv.UserID, conv.ID)
		user = nil
	}

	session, flow, err := mp.sessionManager.LoadOrCreate(ctx, conv)
	if err != nil {
		return nil, "", err
	}

	return &nodeexec.Turn{
		Flow:         flow,
		Graph:        engine.NewGraph(flow),
		Session:      session,
		Conversation: conv,
		User:         user,
		Input:        input,
	}, "", nil
}

func (mp *MessageProcessor) seen(ctx context.Context, key string) (bool, error) {
	if mp.idempotency == nil {
		return false, nil
	}
	seen, err := mp.idempotency.Seen(ctx, key)
	if err != nil {
		return false, errx.Wrap(err, "failed to check trigger", errx.TypeInternal).
			WithDetail("key", key)
	}
	return seen, nil
}

func (mp *MessageProcessor) mark(ctx context.Context, key string) {
	if mp.idempotency == nil {
		return
	}
	if err := mp.idempotency.Mark(ctx, key, mp.idempotencyTTL); err != nil {
		logx.Error("Failed to mark trigger %s as processed: %v", key, err)
	}
}

func skipReason(conv *engine.Conversation) (string, bool) {
	switch {
	case conv.IsClosed():
		return SkipConversationClosed, false
	case conv.IsWithHuman():
		return SkipAssignedToHuman, false
	case conv.AIAgentID.IsEmpty():
		return SkipNoAIAgent, false
	}
	return "", true
}

func messageLabel(id *kernel.MessageID) string {
	if id == nil {
		return "greeting"
	}
	return id.String()
}
