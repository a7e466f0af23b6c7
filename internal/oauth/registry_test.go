package oauth

import (
	"io"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/autobid/auction-api/internal/config"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRegistry(&config.OAuthConfig{
		RedirectBase: "http://localhost:8000/api/v1/oauth/",
		GitHub:       config.OAuthProviderConfig{ClientID: "gh-id", ClientSecret: "gh-secret"},
	}, false, logger)
}

func TestRegistryProviders(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, []string{ProviderGitHub}, r.Providers())

	raw, err := r.AuthCodeURL("GitHub", "abc")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "/login/oauth/authorize", u.Path)
	assert.Equal(t, "gh-id", u.Query().Get("client_id"))
	assert.Equal(t, "abc", u.Query().Get("state"))
	assert.Equal(t, "http://localhost:8000/api/v1/oauth/github/callback", u.Query().Get("redirect_uri"))

	_, err = r.AuthCodeURL(ProviderGoogle, "abc")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRegistryRedirect(t *testing.T) {
	r := newTestRegistry()
	app := fiber.New()
	app.Get("/oauth/:provider", func(c *fiber.Ctx) error {
		if err := r.Redirect(c, c.Params("provider")); err != nil {
			return c.SendStatus(apperrors.HTTPStatusMap[apperrors.CodeOf(err)])
		}
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/oauth/github", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	var cookieState string
	for _, ck := range resp.Cookies() {
		if ck.Name == stateCookie {
			cookieState = ck.Value
		}
	}
	assert.Equal(t, state, cookieState)

	resp, err = app.Test(httptest.NewRequest("GET", "/oauth/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
