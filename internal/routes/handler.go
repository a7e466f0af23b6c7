package routes

import (
	"fmt"
	"strconv"

	"github.com/autobid/auction-api/internal/middleware"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
)

// MessageResponse is the body of delete and logout responses.
type MessageResponse struct {
	Message string `json:"message"`
}

var deletedResponse = MessageResponse{Message: "Deleted"}

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewAppError(apperrors.CodeBadRequest, fmt.Sprintf("Invalid %s", param), err)
	}
	return uint(id), nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err)
	}
	return nil
}

// ownerID fills an owner field from the caller when it is left out and
// rejects requests acting on behalf of someone else. Anonymous callers
// (AUTH_REQUIRED=false) keep whatever they sent.
func ownerID(c *fiber.Ctx, requested uint, field string) (uint, error) {
	caller, ok := middleware.CallerID(c)
	if !ok {
		return requested, nil
	}
	if requested == 0 {
		return caller, nil
	}
	if requested != caller {
		return 0, apperrors.Forbidden(fmt.Sprintf("%s must be the authenticated user", field))
	}
	return requested, nil
}
