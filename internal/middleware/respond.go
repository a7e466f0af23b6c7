package middleware

import (
	"errors"

	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
)

const localsError = "handler_error"

// WriteError renders err as the JSON error envelope. Errors that carry no
// AppError are reported as INTERNAL_ERROR without leaking their text.
func WriteError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
	}
	c.Locals(localsError, err)
	return c.Status(appErr.HTTPStatus()).JSON(appErr.ToErrorResponse(RequestID(c)))
}

// RequestID returns the id assigned by the requestid middleware, falling
// back to the inbound header.
func RequestID(c *fiber.Ctx) string {
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		return rid
	}
	return c.Get(fiber.HeaderXRequestID)
}
