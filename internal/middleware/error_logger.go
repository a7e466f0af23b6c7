package middleware

import (
	"time"

	"github.com/autobid/auction-api/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorLoggerMiddleware struct {
	logger *logrus.Logger
}

func NewErrorLoggerMiddleware(logger *logrus.Logger) *ErrorLoggerMiddleware {
	return &ErrorLoggerMiddleware{logger: logger}
}

// Handle logs 4xx and 5xx responses with request context.
func (e *ErrorLoggerMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < 400 {
				status = fiber.StatusInternalServerError
			}
		}
		if status < 400 {
			return err
		}

		entry := logging.FromCtx(e.logger, c).WithFields(logrus.Fields{
			"status_code": status,
			"ip":          c.IP(),
			"user_agent":  c.Get(fiber.HeaderUserAgent),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if claims := GetUserClaims(c); claims != nil {
			entry = entry.WithField("username", claims.Username)
		}
		if key := c.Get(HeaderIdempotencyKey); key != "" {
			entry = entry.WithField("idempotency_key", key)
		}
		if q := c.Request().URI().QueryString(); len(q) > 0 {
			entry = entry.WithField("query", string(q))
		}
		if body := truncate(string(c.Response().Body()), 500); body != "" {
			entry = entry.WithField("response_body", body)
		}

		cause := err
		if handlerErr, ok := c.Locals(localsError).(error); ok {
			cause = handlerErr
		}

		if status >= 500 {
			if cause != nil {
				entry = entry.WithError(cause)
			}
			entry.Error("Server error response")
		} else {
			entry.Warn("Client error response")
		}
		return err
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "...(truncated)"
	}
	return s
}
