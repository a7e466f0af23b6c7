package routes

import (
	"github.com/autobid/auction-api/internal/logging"
	"github.com/autobid/auction-api/internal/middleware"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles registration and the token lifecycle
type AuthHandler struct {
	users  UserService
	tokens TokenService
	logger *logrus.Logger
}

func NewAuthHandler(users UserService, tokens TokenService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Register handles user registration
// @Summary User registration
// @Description Register a new seller or buyer
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration data"
// @Success 201 {object} models.User
// @Failure 409 {object} errors.ErrorResponse "Username or email taken"
// @Failure 422 {object} errors.ErrorResponse "Invalid payload"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}

	user, err := h.users.Register(c.UserContext(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}

	logging.FromCtx(h.logger, c).WithFields(logrus.Fields{
		"new_user_id": user.ID,
		"username":    user.Username,
		"role":        user.Role,
	}).Info("User registered")
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles user login
// @Summary User login
// @Description Exchange email and password for an access and refresh token. Limited to 3 attempts per 5 seconds per caller.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.TokenPair
// @Failure 401 {object} errors.ErrorResponse "Invalid credentials"
// @Failure 429 {object} errors.ErrorResponse "Too many attempts"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return middleware.WriteError(c, err)
		}
	}
	if req.Email == "" && req.Password == "" {
		req.Email = c.Query("email")
		req.Password = c.Query("password")
	}
	if err := models.Validate(req); err != nil {
		return middleware.WriteError(c, err)
	}

	pair, err := h.tokens.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		logging.FromCtx(h.logger, c).WithError(err).Warn("Login failed")
		return middleware.WriteError(c, err)
	}
	return c.JSON(pair)
}

// Logout revokes a refresh token
// @Summary Logout
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.TokenRequest true "Refresh token"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} errors.ErrorResponse "Token not found"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	refresh, err := refreshTokenFrom(c)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.tokens.Logout(c.UserContext(), refresh); err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Logged out"})
}

// Refresh issues a new access token
// @Summary Refresh access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.TokenRequest true "Refresh token"
// @Success 200 {object} models.AccessTokenResponse
// @Failure 401 {object} errors.ErrorResponse "Expired or invalid token"
// @Failure 404 {object} errors.ErrorResponse "Token not found"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refresh, err := refreshTokenFrom(c)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	resp, err := h.tokens.Refresh(c.UserContext(), refresh)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// Me returns the authenticated user
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security Bearer
// @Success 200 {object} models.User
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.CallerID(c)
	if !ok {
		return middleware.WriteError(c, apperrors.Unauthorized("User not authenticated"))
	}
	user, err := h.users.Get(c.UserContext(), userID)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(user)
}

// refreshTokenFrom reads the refresh token from a JSON body or, as older
// clients send it, from the query string.
func refreshTokenFrom(c *fiber.Ctx) (string, error) {
	var req models.TokenRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return "", err
		}
	}
	if req.Token == "" {
		req.Token = c.Query("token", c.Query("refresh_token"))
	}
	if err := models.Validate(req); err != nil {
		return "", err
	}
	return req.Token, nil
}
