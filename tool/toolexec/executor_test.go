package toolexec

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticRenderer reemplaza tokens fijos
type staticRenderer map[string]string

func (r staticRenderer) Execute(template string) string {
	for token, value := range r {
		template = strings.ReplaceAll(template, token, value)
	}
	return template
}

func httpTool(url string) *tool.Tool {
	return &tool.Tool{
		ID:       "t1",
		TenantID: "tenant-1",
		Name:     "orders",
		Type:     tool.ToolTypeHTTP,
		IsActive: true,
		Config: tool.ToolConfig{
			Method:  "post",
			URL:     url + "/orders/{order_id}",
			Headers: map[string]string{"Authorization": "Bearer {token}"},
			Query:   map[string]string{"email": "{email}"},
			Body:    `{"note":"{note}"}`,
		},
	}
}

func TestHTTPExecutor_RendersRequest(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotEmail, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotEmail = r.URL.Query().Get("email")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(` {"status":"shipped"} `))
	}))
	defer srv.Close()

	r := staticRenderer{"{order_id}": "42", "{token}": "abc", "{email}": "ann@example.com", "{note}": "hi"}
	resp, err := NewExecutor(srv.Client()).Execute(context.Background(), httpTool(srv.URL), r)

	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"shipped"}`, string(resp))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/orders/42", gotPath)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "ann@example.com", gotEmail)
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"note":"hi"}`, string(gotBody))
}

func TestHTTPExecutor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
		},
		{
			name:    "not json",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewExecutor(srv.Client()).Execute(context.Background(), httpTool(srv.URL), staticRenderer{})
			require.Error(t, err)
			assert.True(t, errx.IsType(err, errx.TypeExternal))
		})
	}
}

func TestHTTPExecutor_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := NewExecutor(srv.Client()).Execute(context.Background(), httpTool(srv.URL), staticRenderer{})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewExecutor(srv.Client()).Execute(ctx, httpTool(srv.URL), staticRenderer{})
	require.Error(t, err)
}

func TestHTTPExecutor_InvalidURL(t *testing.T) {
	tl := httpTool("")
	tl.Config.URL = "{base}/orders"

	_, err := NewExecutor(nil).Execute(context.Background(), tl, staticRenderer{})
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeValidation))
}

func TestStaticExecutor(t *testing.T) {
	tl := &tool.Tool{
		ID:     "t2",
		Name:   "plans",
		Type:   tool.ToolTypeStatic,
		Config: tool.ToolConfig{Response: `{"plans":[{"name":"{plan}"}]}`},
	}

	resp, err := NewExecutor(nil).Execute(context.Background(), tl, staticRenderer{"{plan}": "gold"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"plans":[{"name":"gold"}]}`, string(resp))

	tl.Config.Response = ""
	resp, err = NewExecutor(nil).Execute(context.Background(), tl, staticRenderer{})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestExecutor_UnknownType(t *testing.T) {
	_, err := NewExecutor(nil).Execute(context.Background(), &tool.Tool{ID: "t3", Type: "GRPC"}, staticRenderer{})
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeValidation))
}
