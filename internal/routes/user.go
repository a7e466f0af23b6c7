package routes

import (
	"github.com/autobid/auction-api/internal/logging"
	"github.com/autobid/auction-api/internal/middleware"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type UserHandler struct {
	users  UserService
	tokens TokenService
	logger *logrus.Logger
}

func NewUserHandler(users UserService, tokens TokenService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{users: users, tokens: tokens, logger: logger}
}

// List returns every user
// @Summary List users
// @Tags User
// @Produce json
// @Success 200 {array} models.User
// @Router /user [get]
func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(users)
}

// Get returns one user
// @Summary User detail
// @Tags User
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} errors.ErrorResponse
// @Router /user/{id} [get]
func (h *UserHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	user, err := h.users.Get(c.UserContext(), id)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(user)
}

// Delete removes the caller's own account along with everything it owns
// @Summary Delete user
// @Tags User
// @Produce json
// @Security Bearer
// @Param id path int true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse "Not the caller's account"
// @Failure 404 {object} errors.ErrorResponse
// @Router /user/{id} [delete]
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	caller, ok := middleware.CallerID(c)
	if !ok {
		return middleware.WriteError(c, apperrors.Unauthorized("User not authenticated"))
	}
	if caller != id {
		return middleware.WriteError(c, apperrors.Forbidden("Users can only delete their own account"))
	}

	ctx := c.UserContext()
	if err := h.tokens.RevokeAll(ctx, id); err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.users.Delete(ctx, id); err != nil {
		return middleware.WriteError(c, err)
	}

	logging.FromCtx(h.logger, c).Info("User deleted")
	return c.JSON(deletedResponse)
}
