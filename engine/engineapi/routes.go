package engineapi

import (
	"github.com/Abraxas-365/flowpilot/iam/auth"
	"github.com/gofiber/fiber/v2"
)

type EngineRoutes struct {
	handler    *EngineHandler
	middleware *auth.AuthMiddleware
}

func NewEngineRoutes(handler *EngineHandler, middleware *auth.AuthMiddleware) *EngineRoutes {
	return &EngineRoutes{
		handler:    handler,
		middleware: middleware,
	}
}

func (r *EngineRoutes) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1", r.middleware.Authenticate())

	api.Post("/conversations/:conversationId/turns",
		r.middleware.RequireScope(auth.ScopeTurnsWrite), r.handler.RunTurn)

	sessions := api.Group("/sessions", r.middleware.RequireScope(auth.ScopeSessionsRead))
	sessions.Get("/", r.handler.ListSessions)
	sessions.Get("/:conversationId", r.handler.GetSession)
}
