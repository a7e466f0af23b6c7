package routes

import (
	"context"
	"time"

	"github.com/autobid/auction-api/internal/logging"
	"github.com/autobid/auction-api/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

const serviceName = "auction-api"

// ReadinessChecker probes the dependencies behind /readyz.
type ReadinessChecker interface {
	CheckAll(ctx context.Context) (map[string]string, bool)
}

// healthCheck returns the liveness status of the service
// @Summary Health check
// @Description Check if the service is alive
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Healthy"
// @Router /healthz [get]
func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	})
}

// readinessCheck reports whether the database and Redis answer
// @Summary Readiness check
// @Description Check if the service is ready to accept traffic
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Ready"
// @Failure 503 {object} map[string]interface{} "Not ready"
// @Router /readyz [get]
func readinessCheck(checker ReadinessChecker, breaker *middleware.CircuitBreaker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		}
		if breaker != nil {
			body["redis_breaker"] = breaker.Stats()
		}

		ready := true
		if checker != nil {
			results, ok := checker.CheckAll(c.UserContext())
			body["checks"] = results
			ready = ok
		}
		if !ready {
			body["status"] = "not ready"
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
		body["status"] = "ready"
		return c.JSON(body)
	}
}

// versionHandler returns version information
// @Summary Version information
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Version info"
// @Router /version [get]
func versionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": serviceName,
		"version": logging.Version(),
		"commit":  buildCommit,
		"built":   buildTime,
	})
}

// Set at build time with -ldflags "-X".
var (
	buildCommit = "unknown"
	buildTime   = "unknown"
)

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     "NOT_FOUND",
			"message":  "The requested resource was not found",
			"path":     c.Path(),
			"trace_id": middleware.RequestID(c),
		},
	})
}
