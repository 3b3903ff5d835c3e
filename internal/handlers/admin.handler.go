package handlers

import (
	"reasondesk/internal/app"
	adminController "reasondesk/internal/controllers/admin"
	"reasondesk/internal/handlers/middleware"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Handler
	controller *adminController.AdminController
}

func NewAdminHandler(app app.App, router fiber.Router) *AdminHandler {
	return &AdminHandler{
		controller: app.AdminController,
		Handler:    newHandler(app, router, "admin_handler"),
	}
}

func (h *AdminHandler) Register() {
	admin := h.router.Group("/admin")
	admin.Post("/announcements", h.announce)
	admin.Post("/cache/flush", h.flushCaches)
}

func (h *AdminHandler) announce(c *fiber.Ctx) error {
	log := h.log.Function("announce")

	var request struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse announcement", err)
	}

	event, err := h.controller.Announce(c.Context(), middleware.UserID(c), request.Message)
	if err != nil {
		return respondError(c, log, "failed to send announcement", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "success", "event": event})
}

func (h *AdminHandler) flushCaches(c *fiber.Ctx) error {
	log := h.log.Function("flushCaches")

	if err := h.controller.FlushCaches(c.Context(), middleware.UserID(c)); err != nil {
		return respondError(c, log, "failed to flush caches", err)
	}

	return c.JSON(fiber.Map{"message": "success"})
}
