package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/autobid/auction-api/internal/config"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"

	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
)

// Registry maps provider names to their OAuth2 client configuration. It is
// built once at start and read-only afterwards.
type Registry struct {
	providers map[string]*oauth2.Config
	secure    bool
	logger    *logrus.Logger
}

// NewRegistry registers every provider with a client id. Providers without
// credentials are left out and answer NotFound.
func NewRegistry(cfg *config.OAuthConfig, secureCookies bool, logger *logrus.Logger) *Registry {
	r := &Registry{
		providers: make(map[string]*oauth2.Config),
		secure:    secureCookies,
		logger:    logger,
	}
	base := strings.TrimRight(cfg.RedirectBase, "/")

	if cfg.GitHub.ClientID != "" {
		r.providers[ProviderGitHub] = &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			Endpoint:     endpoints.GitHub,
			RedirectURL:  base + "/" + ProviderGitHub + "/callback",
			Scopes:       []string{"read:user", "user:email"},
		}
	}
	if cfg.Google.ClientID != "" {
		r.providers[ProviderGoogle] = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  base + "/" + ProviderGoogle + "/callback",
			Scopes:       []string{"openid", "email", "profile"},
		}
	}

	logger.WithField("providers", r.Providers()).Info("OAuth registry loaded")
	return r
}

// Providers lists the configured provider names in order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthCodeURL returns the provider's authorize URL carrying state.
func (r *Registry) AuthCodeURL(provider, state string) (string, error) {
	conf, ok := r.providers[strings.ToLower(provider)]
	if !ok {
		return "", apperrors.NotFound(fmt.Sprintf("OAuth provider %q is not configured", provider))
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Redirect sends the caller to the provider with a fresh state that is also
// stored in a short-lived cookie for the callback to compare against.
func (r *Registry) Redirect(c *fiber.Ctx, provider string) error {
	state, err := newState()
	if err != nil {
		return fmt.Errorf("failed to generate oauth state: %w", err)
	}
	target, err := r.AuthCodeURL(provider, state)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(stateTTL),
		HTTPOnly: true,
		Secure:   r.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	r.logger.WithField("provider", provider).Debug("Redirecting to OAuth provider")
	return c.Redirect(target, fiber.StatusTemporaryRedirect)
}

func newState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
