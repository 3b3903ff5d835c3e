package handlers

import (
	"reasondesk/internal/app"
	userController "reasondesk/internal/controllers/users"
	. "reasondesk/internal/models"
	"time"

	"github.com/gofiber/fiber/v2"
)

const sessionTTL = 12 * time.Hour

type AuthHandler struct {
	Handler
	controller *userController.UserController
}

func NewAuthHandler(app app.App, router fiber.Router) *AuthHandler {
	return &AuthHandler{
		controller: app.UserController,
		Handler:    newHandler(app, router, "auth_handler"),
	}
}

func (h *AuthHandler) Register() {
	auth := h.router.Group("/auth")
	auth.Post("/login", h.login)
	auth.Post("/logout", h.logout)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	log := h.log.Function("login")

	var request LoginRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse login request", err)
	}
	if err := request.Validate(); err != nil {
		return respondError(c, log, "invalid login request", err)
	}

	user, err := h.controller.Authenticate(c.Context(), request.Email, request.Password)
	if err != nil {
		return respondError(c, log, "login failed", err)
	}

	token, err := h.middleware.IssueToken(user.ID, sessionTTL)
	if err != nil {
		return respondError(c, log, "failed to issue token", err)
	}

	return c.JSON(fiber.Map{
		"message":   "success",
		"user":      user,
		"token":     token,
		"expiresAt": time.Now().Add(sessionTTL).UTC(),
	})
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "success"})
}
