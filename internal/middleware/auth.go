package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/token"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
)

const (
	localsUserID  = "user_id"
	localsClaims  = "user_claims"
	localsSubject = "subject"
)

// TokenVerifier validates access tokens issued by this service.
type TokenVerifier interface {
	VerifyAccess(accessToken string) (*token.Claims, error)
}

type AuthMiddleware struct {
	config   *config.JWTConfig
	verifier TokenVerifier
	logger   *logrus.Logger
	jwkCache *jwk.Cache
}

// NewAuthMiddleware verifies our own HS256 tokens. When a JWKS endpoint is
// configured, tokens from that identity provider are accepted as well.
func NewAuthMiddleware(cfg *config.JWTConfig, verifier TokenVerifier, logger *logrus.Logger) (*AuthMiddleware, error) {
	a := &AuthMiddleware{
		config:   cfg,
		verifier: verifier,
		logger:   logger,
	}
	if cfg.JWKSEndpoint == "" {
		return a, nil
	}

	cache := jwk.NewCache(context.Background())
	if err := cache.Register(cfg.JWKSEndpoint, jwk.WithMinRefreshInterval(cfg.CacheTTL)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cache.Refresh(ctx, cfg.JWKSEndpoint); err != nil {
		logger.WithError(err).Warn("Failed to pre-fetch JWKS, will try during first request")
	}

	a.jwkCache = cache
	return a, nil
}

// Authenticate rejects requests without a valid bearer token.
func (a *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c)
		if err != nil {
			return WriteError(c, err)
		}
		if err := a.authorize(c, raw); err != nil {
			return WriteError(c, err)
		}
		return c.Next()
	}
}

// Optional authenticates the caller when a token is presented and lets
// anonymous requests through.
func (a *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		raw, err := bearerToken(c)
		if err != nil {
			return WriteError(c, err)
		}
		if err := a.authorize(c, raw); err != nil {
			return WriteError(c, err)
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.Unauthorized("Authorization header is required")
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", apperrors.Unauthorized("Authorization header must be Bearer token")
	}
	raw := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if raw == "" {
		return "", apperrors.Unauthorized("Token is required")
	}
	return raw, nil
}

func (a *AuthMiddleware) authorize(c *fiber.Ctx, raw string) error {
	claims, err := a.verifier.VerifyAccess(raw)
	if err == nil {
		userID, idErr := claims.UserID()
		if idErr != nil {
			return apperrors.NewAppError(apperrors.CodeUnauthenticated, "Token validation failed", idErr)
		}
		c.Locals(localsClaims, claims)
		c.Locals(localsSubject, claims.Subject)
		c.Locals(localsUserID, userID)
		return nil
	}

	if a.jwkCache == nil {
		a.logger.WithError(err).WithField("path", c.Path()).Debug("Token validation failed")
		return err
	}

	external, extErr := a.validateExternal(c.Context(), raw)
	if extErr != nil {
		a.logger.WithError(extErr).WithField("path", c.Path()).Debug("Token validation failed")
		return apperrors.NewAppError(apperrors.CodeUnauthenticated, "Token validation failed", extErr)
	}
	sub, _ := external["sub"].(string)
	c.Locals(localsClaims, external)
	c.Locals(localsSubject, sub)
	if id, err := strconv.ParseUint(sub, 10, 64); err == nil {
		c.Locals(localsUserID, uint(id))
	}
	return nil
}

// validateExternal checks an identity provider token against the JWKS.
func (a *AuthMiddleware) validateExternal(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(a.config.Issuer),
	}
	if a.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.config.Audience))
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		keyID, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}
		set, err := a.jwkCache.Get(ctx, a.config.JWKSEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWK set: %w", err)
		}
		key, found := set.LookupKeyID(keyID)
		if !found {
			return nil, fmt.Errorf("key with ID %s not found", keyID)
		}
		var verifyKey interface{}
		if err := key.Raw(&verifyKey); err != nil {
			return nil, fmt.Errorf("failed to get raw key: %w", err)
		}
		return verifyKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("failed to get token claims")
	}
	return claims, nil
}

// CallerID returns the authenticated user's id.
func CallerID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(localsUserID).(uint)
	return id, ok && id != 0
}

// GetUserClaims returns our own claims for locally issued tokens.
func GetUserClaims(c *fiber.Ctx) *token.Claims {
	if claims, ok := c.Locals(localsClaims).(*token.Claims); ok {
		return claims
	}
	return nil
}

// GetSubject returns the token subject for either kind of token.
func GetSubject(c *fiber.Ctx) string {
	sub, _ := c.Locals(localsSubject).(string)
	return sub
}
