package engineapi

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/iam/auth"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// SessionReader consultas de sesiones expuestas por el API
type SessionReader interface {
	Get(ctx context.Context, conversationID kernel.ConversationID, aiAgentID kernel.AIAgentID) (*engine.Session, error)
	List(ctx context.Context, req engine.SessionListRequest) (engine.SessionListResponse, error)
}

// EngineHandler endpoints del motor de flujos
type EngineHandler struct {
	processor     engine.TurnProcessor
	conversations engine.ConversationStore
	sessions      SessionReader
}

func NewEngineHandler(
	processor engine.TurnProcessor,
	conversations engine.ConversationStore,
	sessions SessionReader,
) *EngineHandler {
	return &EngineHandler{
		processor:     processor,
		conversations: conversations,
		sessions:      sessions,
	}
}

// RunTurn ejecuta un turno de la conversación
// POST /api/v1/conversations/:conversationId/turns
func (h *EngineHandler) RunTurn(c *fiber.Ctx) error {
	conv, err := h.conversation(c)
	if err != nil {
		return err
	}

	var req engine.RunTurnRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errx.New("invalid request body", errx.TypeValidation).WithCause(err)
		}
	}

	log.Printf("📥 Turn requested for conversation %s", conv.ID)

	result, err := h.processor.RunTurn(c.Context(), conv.ID, req.MessageID)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// GetSession estado de la sesión de una conversación
// GET /api/v1/sessions/:conversationId
func (h *EngineHandler) GetSession(c *fiber.Ctx) error {
	conv, err := h.conversation(c)
	if err != nil {
		return err
	}

	session, err := h.sessions.Get(c.Context(), conv.ID, conv.AIAgentID)
	if err != nil {
		return err
	}

	return c.JSON(engine.SessionResponse{Session: *session})
}

// ListSessions sesiones del tenant, paginadas
// GET /api/v1/sessions?page=1&page_size=20&status=waiting_for_user_input
func (h *EngineHandler) ListSessions(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	req := engine.SessionListRequest{
		PaginationOptions: storex.PaginationOptions{
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", 20),
		},
		TenantID: authContext.TenantID,
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	if raw := c.Query("status"); raw != "" {
		status := engine.SessionStatus(raw)
		if status != engine.SessionStatusActive && status != engine.SessionStatusWaitingForUserInput {
			return errx.New("invalid session status", errx.TypeValidation).
				WithDetail("status", raw)
		}
		req.Status = &status
	}

	resp, err := h.sessions.List(c.Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

// conversation carga la conversación del path; otra tenant = no encontrada
func (h *EngineHandler) conversation(c *fiber.Ctx) (*engine.Conversation, error) {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return nil, auth.ErrUnauthorized()
	}

	convID := kernel.ConversationID(c.Params("conversationId"))
	if convID.IsEmpty() {
		return nil, errx.New("conversation id is required", errx.TypeValidation)
	}

	conv, err := h.conversations.FindConversation(c.Context(), convID)
	if err != nil {
		return nil, err
	}
	if conv.TenantID != authContext.TenantID {
		log.Printf("🚫 Tenant mismatch for conversation %s", convID)
		return nil, engine.ErrConversationNotFound().WithDetail("conversation_id", convID.String())
	}

	return conv, nil
}
