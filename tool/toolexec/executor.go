package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Abraxas-365/flowpilot/tool"
	"github.com/tidwall/gjson"
)

// maxResponseSize límite de lectura de la respuesta de un tool
const maxResponseSize = 1 << 20

// Executor despacha por tipo de tool
type Executor struct {
	http   *HTTPExecutor
	static *StaticExecutor
}

var _ tool.ToolExecutor = (*Executor)(nil)

func NewExecutor(httpClient *http.Client) *Executor {
	return &Executor{
		http:   NewHTTPExecutor(httpClient),
		static: &StaticExecutor{},
	}
}

func (e *Executor) Execute(ctx context.Context, t *tool.Tool, renderer tool.Renderer) (json.RawMessage, error) {
	switch t.Type {
	case tool.ToolTypeHTTP:
		return e.http.Execute(ctx, t, renderer)
	case tool.ToolTypeStatic:
		return e.static.Execute(ctx, t, renderer)
	}
	return nil, tool.ErrInvalidToolType().
		WithDetail("tool_id", t.ID.String()).
		WithDetail("type", string(t.Type))
}

// ============================================================================
// HTTP
// ============================================================================

type HTTPExecutor struct {
	httpClient *http.Client
}

var _ tool.ToolExecutor = (*HTTPExecutor)(nil)

// NewHTTPExecutor el timeout efectivo lo fija el contexto de la llamada
func NewHTTPExecutor(httpClient *http.Client) *HTTPExecutor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPExecutor{httpClient: httpClient}
}

func (e *HTTPExecutor) Execute(ctx context.Context, t *tool.Tool, renderer tool.Renderer) (json.RawMessage, error) {
	cfg := t.Config

	// Render URL with templates
	endpoint, err := url.Parse(renderer.Execute(cfg.URL))
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, tool.ErrHTTPInvalidURL().
			WithDetail("tool_id", t.ID.String()).
			WithDetail("url", cfg.URL)
	}

	if len(cfg.Query) > 0 {
		query := endpoint.Query()
		for k, v := range cfg.Query {
			query.Set(k, renderer.Execute(v))
		}
		endpoint.RawQuery = query.Encode()
	}

	// Render body
	var bodyReader io.Reader
	if body := strings.TrimSpace(cfg.Body); body != "" {
		bodyReader = bytes.NewBufferString(renderer.Execute(body))
	}

	log.Printf("🌐 Tool %s: %s %s", t.Name, cfg.GetMethod(), endpoint.Redacted())

	req, err := http.NewRequestWithContext(ctx, cfg.GetMethod(), endpoint.String(), bodyReader)
	if err != nil {
		return nil, tool.ErrHTTPRequestFailed().
			WithDetail("tool_id", t.ID.String()).
			WithCause(err)
	}

	// Add headers
	for key, value := range cfg.Headers {
		req.Header.Set(key, renderer.Execute(value))
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, tool.ErrTimeoutExceeded().
				WithDetail("tool_id", t.ID.String()).
				WithCause(err)
		}
		return nil, tool.ErrHTTPRequestFailed().
			WithDetail("tool_id", t.ID.String()).
			WithCause(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, tool.ErrHTTPRequestFailed().
			WithDetail("tool_id", t.ID.String()).
			WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, tool.ErrHTTPRequestFailed().
			WithDetail("tool_id", t.ID.String()).
			WithDetail("status_code", resp.StatusCode)
	}

	log.Printf("✅ Tool %s responded %d (%d bytes)", t.Name, resp.StatusCode, len(bodyBytes))
	return parseResponse(t, bodyBytes)
}

// ============================================================================
// Static
// ============================================================================

// StaticExecutor responde el JSON configurado, con tokens renderizados
type StaticExecutor struct{}

var _ tool.ToolExecutor = (*StaticExecutor)(nil)

func (e *StaticExecutor) Execute(ctx context.Context, t *tool.Tool, renderer tool.Renderer) (json.RawMessage, error) {
	return parseResponse(t, []byte(renderer.Execute(t.Config.Response)))
}

// parseResponse nil para cuerpo vacío; error si no es JSON
func parseResponse(t *tool.Tool, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, tool.ErrInvalidResponse().
			WithDetail("tool_id", t.ID.String())
	}
	return json.RawMessage(body), nil
}
