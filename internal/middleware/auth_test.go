package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/token"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issuerVerifier struct {
	issuer *token.Issuer
}

func (v issuerVerifier) VerifyAccess(raw string) (*token.Claims, error) {
	claims, err := v.issuer.Parse(raw, token.TypeAccess)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Token validation failed", err)
	}
	return claims, nil
}

func newAuthApp(t *testing.T) (*fiber.App, *token.Issuer) {
	cfg := &config.JWTConfig{Secret: "test-secret", Issuer: "auction-api", AccessTTL: time.Minute, RefreshTTL: time.Hour}
	issuer := token.NewIssuer(cfg)
	auth, err := NewAuthMiddleware(cfg, issuerVerifier{issuer}, testLogger())
	require.NoError(t, err)

	app := fiber.New()
	handler := func(c *fiber.Ctx) error {
		id, ok := CallerID(c)
		return c.JSON(fiber.Map{"id": id, "ok": ok, "sub": GetSubject(c)})
	}
	app.Get("/strict", auth.Authenticate(), handler)
	app.Get("/optional", auth.Optional(), handler)
	return app, issuer
}

func TestAuthenticate(t *testing.T) {
	app, issuer := newAuthApp(t)
	access, _, err := issuer.IssueAccess(7, "bob")
	require.NoError(t, err)
	refresh, _, err := issuer.IssueRefresh(7, "bob")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"not bearer", "Basic abc", fiber.StatusUnauthorized},
		{"garbage", "Bearer abc", fiber.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, fiber.StatusUnauthorized},
		{"access token", "Bearer " + access, fiber.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/strict", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			if tc.status == fiber.StatusUnauthorized {
				var body apperrors.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, apperrors.CodeUnauthenticated, body.Error.Code)
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.EqualValues(t, 7, body["id"])
			assert.Equal(t, "7", body["sub"])
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	app, _ := newAuthApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/optional", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["ok"])

	req := httptest.NewRequest("GET", "/optional", nil)
	req.Header.Set("Authorization", "Bearer broken")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
