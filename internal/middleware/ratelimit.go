package middleware

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/metrics"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

//go:embed lua/token_bucket.lua
var tokenBucketScript string

//go:embed lua/login_window.lua
var loginWindowScript string

// RateLimitMiddleware is a global per-caller token bucket kept in Redis.
type RateLimitMiddleware struct {
	config  *config.RateLimitConfig
	redis   redis.UniversalClient
	breaker *CircuitBreaker
	logger  *logrus.Logger
	script  *redis.Script
}

func NewRateLimitMiddleware(cfg *config.RateLimitConfig, redisClient redis.UniversalClient, breaker *CircuitBreaker, logger *logrus.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		config:  cfg,
		redis:   redisClient,
		breaker: breaker,
		logger:  logger,
		script:  redis.NewScript(tokenBucketScript),
	}
}

func (r *RateLimitMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.config.Enabled {
			return c.Next()
		}

		path := c.Path()
		for _, exemptPath := range r.config.ExemptPaths {
			if exemptPath != "" && strings.HasPrefix(path, exemptPath) {
				return c.Next()
			}
		}

		key := rateLimitKey("ratelimit", c)
		allowed, remaining, err := r.take(c.Context(), key)
		if err != nil {
			// Fail open: a Redis outage must not take the API down.
			r.logger.WithError(err).Warn("Rate limit check failed")
			return c.Next()
		}

		resetTime := time.Now().Add(r.config.WindowSize).Truncate(time.Second)
		c.Set("X-RateLimit-Limit", strconv.Itoa(r.config.RPS))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			metrics.RecordRateLimitDrop("global")
			r.logger.WithFields(logrus.Fields{
				"key":    key,
				"path":   path,
				"method": c.Method(),
			}).Warn("Rate limit exceeded")
			return tooManyRequests(c, r.config.WindowSize, "Rate limit exceeded. Please try again later.")
		}
		return c.Next()
	}
}

func (r *RateLimitMiddleware) take(ctx context.Context, key string) (bool, int, error) {
	var result interface{}
	start := time.Now()
	err := r.breaker.Execute(ctx, func() error {
		var err error
		result, err = r.script.Run(ctx, r.redis, []string{key},
			r.config.Burst, r.config.RPS, r.config.WindowSize.Milliseconds(), 1).Result()
		return err
	})
	metrics.RecordRedisOperation("rate_limit", redisStatus(err), time.Since(start))
	if err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	values, err := int64Slice(result, 3)
	if err != nil {
		return false, 0, err
	}
	return values[0] == 1, int(values[1]), nil
}

// LoginLimiter caps login attempts per caller inside a sliding window.
type LoginLimiter struct {
	config  *config.LoginLimitConfig
	redis   redis.UniversalClient
	breaker *CircuitBreaker
	logger  *logrus.Logger
	script  *redis.Script
	now     func() time.Time
}

func NewLoginLimiter(cfg *config.LoginLimitConfig, redisClient redis.UniversalClient, breaker *CircuitBreaker, logger *logrus.Logger) *LoginLimiter {
	return &LoginLimiter{
		config:  cfg,
		redis:   redisClient,
		breaker: breaker,
		logger:  logger,
		script:  redis.NewScript(loginWindowScript),
		now:     time.Now,
	}
}

func (l *LoginLimiter) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rateLimitKey("loginlimit", c)
		allowed, retryAfter, err := l.Allow(c.Context(), key)
		if err != nil {
			l.logger.WithError(err).Warn("Login limit check failed")
			return c.Next()
		}
		if !allowed {
			metrics.RecordRateLimitDrop("login")
			l.logger.WithFields(logrus.Fields{
				"key":         key,
				"retry_after": retryAfter.String(),
			}).Warn("Login attempts exceeded")
			return tooManyRequests(c, retryAfter, "Too many login attempts. Please try again later.")
		}
		return c.Next()
	}
}

// Allow records an attempt for key and reports whether it fits the window.
// When it does not, the returned duration is how long until it would.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	var result interface{}
	start := time.Now()
	err := l.breaker.Execute(ctx, func() error {
		var err error
		result, err = l.script.Run(ctx, l.redis, []string{key},
			l.now().UnixMilli(), l.config.Window.Milliseconds(), l.config.Max, uuid.NewString()).Result()
		return err
	})
	metrics.RecordRedisOperation("login_limit", redisStatus(err), time.Since(start))
	if err != nil {
		return false, 0, fmt.Errorf("failed to execute login limit script: %w", err)
	}

	values, err := int64Slice(result, 3)
	if err != nil {
		return false, 0, err
	}
	return values[0] == 1, time.Duration(values[2]) * time.Millisecond, nil
}

// rateLimitKey prefers the authenticated user and falls back to the
// client address.
func rateLimitKey(prefix string, c *fiber.Ctx) string {
	if userID, ok := CallerID(c); ok {
		return fmt.Sprintf("%s:user:%d", prefix, userID)
	}
	return fmt.Sprintf("%s:ip:%s", prefix, clientIP(c))
}

func clientIP(c *fiber.Ctx) string {
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.IP()
}

func tooManyRequests(c *fiber.Ctx, retryAfter time.Duration, message string) error {
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
	return WriteError(c, apperrors.NewAppError(apperrors.CodeRateLimited, message, nil))
}

func int64Slice(result interface{}, n int) ([]int64, error) {
	items, ok := result.([]interface{})
	if !ok || len(items) != n {
		return nil, fmt.Errorf("unexpected script result format")
	}
	values := make([]int64, n)
	for i, item := range items {
		v, ok := item.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result element %d", i)
		}
		values[i] = v
	}
	return values, nil
}

func redisStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
