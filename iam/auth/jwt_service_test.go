package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret})

	token, err := svc.GenerateServiceToken("helpdesk", kernel.TenantID("t1"), []string{ScopeTurnsWrite})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "helpdesk", claims.Subject)
	assert.Equal(t, kernel.TenantID("t1"), claims.TenantID)
	assert.Equal(t, []string{ScopeTurnsWrite}, claims.Scopes)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	issuer := NewJWTService(JWTConfig{SecretKey: testSecret})
	verifier := NewJWTService(JWTConfig{SecretKey: "ffffffffffffffffffffffffffffffff"})

	token, err := issuer.GenerateServiceToken("helpdesk", kernel.TenantID("t1"), nil)
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsMissingTenant(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret})

	token, err := svc.GenerateServiceToken("helpdesk", "", nil)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.JWT.SecretKey = "short"
	assert.Error(t, cfg.Validate())

	cfg.JWT.SecretKey = testSecret
	assert.NoError(t, cfg.Validate())
}

func TestAuthMiddleware(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret})
	mw := NewAuthMiddleware(svc)

	app := fiber.New()
	app.Get("/private", mw.Authenticate(), mw.RequireScope(ScopeSessionsRead), func(c *fiber.Ctx) error {
		authCtx, ok := GetAuthContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(authCtx.TenantID.String())
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	t.Run("missing scope", func(t *testing.T) {
		token, err := svc.GenerateServiceToken("helpdesk", "t1", []string{ScopeTurnsWrite})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("ok", func(t *testing.T) {
		token, err := svc.GenerateServiceToken("helpdesk", "t1", []string{ScopeSessionsRead})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
