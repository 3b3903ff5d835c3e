package handlers

import (
	"reasondesk/internal/app"
	crudController "reasondesk/internal/controllers/crud"
	. "reasondesk/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CrudHandler exposes a CrudController under one path. single and plural
// are the JSON keys for one entity and for a page of them.
type CrudHandler[T any, R crudController.Request[T]] struct {
	Handler
	controller *crudController.CrudController[T, R]
	path       string
	single     string
	plural     string
}

func NewClientHandler(app app.App, router fiber.Router) *CrudHandler[Client, ClientRequest] {
	return &CrudHandler[Client, ClientRequest]{
		controller: app.ClientController,
		path:       "/clients",
		single:     "client",
		plural:     "clients",
		Handler:    newHandler(app, router, "client_handler"),
	}
}

func NewExhibitionHandler(app app.App, router fiber.Router) *CrudHandler[Exhibition, ExhibitionRequest] {
	return &CrudHandler[Exhibition, ExhibitionRequest]{
		controller: app.ExhibitionController,
		path:       "/exhibitions",
		single:     "exhibition",
		plural:     "exhibitions",
		Handler:    newHandler(app, router, "exhibition_handler"),
	}
}

func NewMeetingHandler(app app.App, router fiber.Router) *CrudHandler[Meeting, MeetingRequest] {
	return &CrudHandler[Meeting, MeetingRequest]{
		controller: app.MeetingController,
		path:       "/meetings",
		single:     "meeting",
		plural:     "meetings",
		Handler:    newHandler(app, router, "meeting_handler"),
	}
}

func (h *CrudHandler[T, R]) Register() {
	group := h.router.Group(h.path)
	group.Get("/", h.list)
	group.Post("/", h.create)
	group.Get("/:id", h.get)
	group.Put("/:id", h.update)
	group.Delete("/:id", h.delete)
}

func (h *CrudHandler[T, R]) list(c *fiber.Ctx) error {
	log := h.log.Function("list")

	page, err := pagination(c)
	if err != nil {
		return respondError(c, log, "invalid pagination", err)
	}

	result, err := h.controller.List(c.Context(), page)
	if err != nil {
		return respondError(c, log, "failed to list "+h.plural, err)
	}

	return c.JSON(fiber.Map{"message": "success", h.plural: result})
}

func (h *CrudHandler[T, R]) create(c *fiber.Ctx) error {
	log := h.log.Function("create")

	var request R
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse "+h.single+" request", err)
	}

	entity, err := h.controller.Create(c.Context(), request)
	if err != nil {
		return respondError(c, log, "failed to create "+h.single, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "success", h.single: entity})
}

func (h *CrudHandler[T, R]) get(c *fiber.Ctx) error {
	log := h.log.Function("get")

	entity, err := h.controller.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to get "+h.single, err)
	}

	return c.JSON(fiber.Map{"message": "success", h.single: entity})
}

func (h *CrudHandler[T, R]) update(c *fiber.Ctx) error {
	log := h.log.Function("update")

	var request R
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse "+h.single+" request", err)
	}

	entity, err := h.controller.Update(c.Context(), c.Params("id"), request)
	if err != nil {
		return respondError(c, log, "failed to update "+h.single, err)
	}

	return c.JSON(fiber.Map{"message": "success", h.single: entity})
}

func (h *CrudHandler[T, R]) delete(c *fiber.Ctx) error {
	log := h.log.Function("delete")

	if err := h.controller.Delete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, log, "failed to delete "+h.single, err)
	}

	return c.JSON(fiber.Map{"message": "success"})
}
