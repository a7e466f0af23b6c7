package middleware

import (
	"fmt"

	"github.com/autobid/auction-api/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Manager holds the middleware instances shared by the routes.
type Manager struct {
	Auth        *AuthMiddleware
	Idempotency *IdempotencyMiddleware
	RateLimit   *RateLimitMiddleware
	LoginLimit  *LoginLimiter
	ErrorLogger *ErrorLoggerMiddleware
	Breaker     *CircuitBreaker
	RedisClient redis.UniversalClient
	Config      *config.Config
	Logger      *logrus.Logger
}

// NewManager wires the middlewares. redisClient may be nil, in which case
// the Redis-backed middlewares pass every request through.
func NewManager(cfg *config.Config, redisClient redis.UniversalClient, verifier TokenVerifier, logger *logrus.Logger) (*Manager, error) {
	auth, err := NewAuthMiddleware(&cfg.JWT, verifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	m := &Manager{
		Auth:        auth,
		ErrorLogger: NewErrorLoggerMiddleware(logger),
		RedisClient: redisClient,
		Config:      cfg,
		Logger:      logger,
	}
	if redisClient != nil {
		m.Breaker = NewCircuitBreaker("redis", logger)
		m.Idempotency = NewIdempotencyMiddleware(redisClient, logger)
		m.RateLimit = NewRateLimitMiddleware(&cfg.RateLimit, redisClient, m.Breaker, logger)
		m.LoginLimit = NewLoginLimiter(&cfg.LoginLimit, redisClient, m.Breaker, logger)
	}
	return m, nil
}

// RequireAuth guards write routes. With AUTH_REQUIRED=false the caller is
// still identified when a token is sent.
func (m *Manager) RequireAuth() fiber.Handler {
	if m.Config.Server.AuthRequired {
		return m.Auth.Authenticate()
	}
	return m.Auth.Optional()
}

func (m *Manager) Identify() fiber.Handler {
	return m.Auth.Optional()
}

func (m *Manager) RateLimitHandler() fiber.Handler {
	if m.RateLimit == nil {
		return passThrough
	}
	return m.RateLimit.Handle()
}

func (m *Manager) LoginLimitHandler() fiber.Handler {
	if m.LoginLimit == nil {
		return passThrough
	}
	return m.LoginLimit.Handle()
}

func (m *Manager) IdempotencyHandler() fiber.Handler {
	if m.Idempotency == nil {
		return passThrough
	}
	return m.Idempotency.Handle()
}

func (m *Manager) Close() error {
	if m.RedisClient != nil {
		return m.RedisClient.Close()
	}
	return nil
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
