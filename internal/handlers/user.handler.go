package handlers

import (
	"reasondesk/internal/app"
	userController "reasondesk/internal/controllers/users"
	"reasondesk/internal/handlers/middleware"
	. "reasondesk/internal/models"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	Handler
	controller *userController.UserController
}

func NewUserHandler(app app.App, router fiber.Router) *UserHandler {
	return &UserHandler{
		controller: app.UserController,
		Handler:    newHandler(app, router, "user_handler"),
	}
}

func (h *UserHandler) Register() {
	users := h.router.Group("/users")
	users.Get("/me", h.getMe)
	users.Get("/", h.listUsers)
	users.Post("/", h.createUser)
	users.Get("/:id", h.getUser)
	users.Put("/:id", h.updateUser)
	users.Delete("/:id", h.deleteUser)
}

func (h *UserHandler) getMe(c *fiber.Ctx) error {
	log := h.log.Function("getMe")

	user, ok := c.Locals(middleware.LocalsUser).(User)
	if !ok || user.ID == "" {
		log.Debug("no local user for request", "userID", middleware.UserID(c))
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"message": "error", "error": "no user for this session"})
	}

	return c.JSON(fiber.Map{"message": "success", "user": user})
}

func (h *UserHandler) listUsers(c *fiber.Ctx) error {
	log := h.log.Function("listUsers")

	page, err := pagination(c)
	if err != nil {
		return respondError(c, log, "invalid pagination", err)
	}

	result, err := h.controller.ListUsers(c.Context(), page)
	if err != nil {
		return respondError(c, log, "failed to list users", err)
	}

	return c.JSON(fiber.Map{"message": "success", "users": result})
}

func (h *UserHandler) createUser(c *fiber.Ctx) error {
	log := h.log.Function("createUser")

	var request CreateUserRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse user request", err)
	}

	user, err := h.controller.CreateUser(c.Context(), request)
	if err != nil {
		return respondError(c, log, "failed to create user", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "success", "user": user})
}

func (h *UserHandler) getUser(c *fiber.Ctx) error {
	log := h.log.Function("getUser")

	user, err := h.controller.GetUser(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to get user", err)
	}

	return c.JSON(fiber.Map{"message": "success", "user": user})
}

func (h *UserHandler) updateUser(c *fiber.Ctx) error {
	log := h.log.Function("updateUser")

	var request UpdateUserRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse user request", err)
	}

	user, err := h.controller.UpdateUser(c.Context(), c.Params("id"), request)
	if err != nil {
		return respondError(c, log, "failed to update user", err)
	}

	return c.JSON(fiber.Map{"message": "success", "user": user})
}

func (h *UserHandler) deleteUser(c *fiber.Ctx) error {
	log := h.log.Function("deleteUser")

	if err := h.controller.DeleteUser(c.Context(), c.Params("id")); err != nil {
		return respondError(c, log, "failed to delete user", err)
	}

	return c.JSON(fiber.Map{"message": "success"})
}
