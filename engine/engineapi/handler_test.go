package engineapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abraxas-365/craftable/errx/errxfiber"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/enginetest"
	"github.com/Abraxas-365/flowpilot/engine/sessmanager"
	"github.com/Abraxas-365/flowpilot/iam/auth"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFunc func(ctx context.Context, conversationID kernel.ConversationID, messageID *kernel.MessageID) (*engine.TurnResult, error)

func (f processorFunc) RunTurn(ctx context.Context, conversationID kernel.ConversationID, messageID *kernel.MessageID) (*engine.TurnResult, error) {
	return f(ctx, conversationID, messageID)
}

type apiFixture struct {
	app      *fiber.App
	tokens   *auth.JWTService
	sessions *enginetest.SessionRepository
	calls    []string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		tokens:   auth.NewJWTService(auth.JWTConfig{SecretKey: strings.Repeat("s", 32)}),
		sessions: enginetest.NewSessionRepository(),
	}

	conversations := enginetest.NewConversationStore()
	conversations.AddConversation(enginetest.Conversation("conv-1", "user-1"))
	foreign := enginetest.Conversation("conv-2", "user-2")
	foreign.TenantID = "tenant-2"
	conversations.AddConversation(foreign)

	processor := processorFunc(func(ctx context.Context, convID kernel.ConversationID, messageID *kernel.MessageID) (*engine.TurnResult, error) {
		label := "greeting"
		if messageID != nil {
			label = messageID.String()
		}
		f.calls = append(f.calls, convID.String()+":"+label)
		return &engine.TurnResult{ConversationID: convID, Outcome: engine.TurnCompleted, Handled: true}, nil
	})

	manager := sessmanager.NewSessionManager(f.sessions, enginetest.NewFlowRepository(), nil, nil)
	handler := NewEngineHandler(processor, conversations, manager)

	f.app = fiber.New(fiber.Config{ErrorHandler: errxfiber.FiberErrorHandler()})
	NewEngineRoutes(handler, auth.NewAuthMiddleware(f.tokens)).RegisterRoutes(f.app)
	return f
}

func (f *apiFixture) token(t *testing.T, scopes ...string) string {
	t.Helper()
	token, err := f.tokens.GenerateServiceToken("helpdesk", enginetest.TenantID, scopes)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestRunTurn_Endpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, auth.ScopeTurnsWrite)

	resp, body := f.do(t, http.MethodPost, "/api/v1/conversations/conv-1/turns", token, `{"message_id":"m-1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result engine.TurnResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, engine.TurnCompleted, result.Outcome)
	assert.True(t, result.Handled)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/conversations/conv-1/turns", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{"conv-1:m-1", "conv-1:greeting"}, f.calls)
}

func TestRunTurn_Auth(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/conversations/conv-1/turns", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/conversations/conv-1/turns", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/conversations/conv-1/turns", f.token(t, auth.ScopeSessionsRead), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Empty(t, f.calls)
}

func TestRunTurn_OtherTenantConversation(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/conversations/conv-2/turns", f.token(t, auth.ScopeTurnsWrite), "")

	assert.GreaterOrEqual(t, resp.StatusCode, 400)
	assert.Empty(t, f.calls)
}

func TestSessions_Endpoints(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	waiting := engine.NewSession(enginetest.Conversation("conv-1", "user-1"), "main")
	waiting.WaitForUserInput("b1")
	require.NoError(t, f.sessions.Save(ctx, *waiting))

	other := engine.NewSession(enginetest.Conversation("conv-3", "user-3"), "main")
	require.NoError(t, f.sessions.Save(ctx, *other))

	token := f.token(t, auth.ScopeSessionsRead)

	resp, body := f.do(t, http.MethodGet, "/api/v1/sessions/conv-1", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var single engine.SessionResponse
	require.NoError(t, json.Unmarshal(body, &single))
	assert.Equal(t, engine.SessionStatusWaitingForUserInput, single.Session.Status)
	assert.Equal(t, "b1", single.Session.CurrentNode())

	resp, body = f.do(t, http.MethodGet, "/api/v1/sessions?status=waiting_for_user_input", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"conv-1"`)
	assert.NotContains(t, string(body), `"conv-3"`)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/sessions?status=sleeping", token, "")
	assert.GreaterOrEqual(t, resp.StatusCode, 400)
}
