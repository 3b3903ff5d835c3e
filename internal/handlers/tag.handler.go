package handlers

import (
	"reasondesk/internal/app"
	tagController "reasondesk/internal/controllers/tags"
	. "reasondesk/internal/models"

	"github.com/gofiber/fiber/v2"
)

type TagHandler struct {
	Handler
	controller *tagController.TagController
}

func NewTagHandler(app app.App, router fiber.Router) *TagHandler {
	return &TagHandler{
		controller: app.TagController,
		Handler:    newHandler(app, router, "tag_handler"),
	}
}

func (h *TagHandler) Register() {
	tags := h.router.Group("/tags")
	tags.Get("/", h.listTags)
	tags.Post("/", h.createTag)
	tags.Get("/popular", h.getPopularTags)
	tags.Get("/search", h.searchTags)
	tags.Post("/merge", h.mergeTags)
	tags.Get("/category/:category", h.getTagsByCategory)
	tags.Get("/:id", h.getTag)
	tags.Put("/:id", h.updateTag)
	tags.Delete("/:id", h.deleteTag)
	tags.Get("/:id/related", h.getRelatedTags)
	tags.Get("/:id/usage", h.getTagUsage)
}

func (h *TagHandler) listTags(c *fiber.Ctx) error {
	log := h.log.Function("listTags")

	page, err := pagination(c)
	if err != nil {
		return respondError(c, log, "invalid pagination", err)
	}

	result, err := h.controller.ListTags(c.Context(), page)
	if err != nil {
		return respondError(c, log, "failed to list tags", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tags": result})
}

func (h *TagHandler) createTag(c *fiber.Ctx) error {
	log := h.log.Function("createTag")

	var request CreateTagRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse tag request", err)
	}

	tag, err := h.controller.CreateTag(c.Context(), request)
	if err != nil {
		return respondError(c, log, "failed to create tag", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "success", "tag": tag})
}

func (h *TagHandler) getTag(c *fiber.Ctx) error {
	log := h.log.Function("getTag")

	tag, err := h.controller.GetTag(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to get tag", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tag": tag})
}

func (h *TagHandler) updateTag(c *fiber.Ctx) error {
	log := h.log.Function("updateTag")

	var request UpdateTagRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse tag request", err)
	}

	tag, err := h.controller.UpdateTag(c.Context(), c.Params("id"), request)
	if err != nil {
		return respondError(c, log, "failed to update tag", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tag": tag})
}

func (h *TagHandler) deleteTag(c *fiber.Ctx) error {
	log := h.log.Function("deleteTag")

	if err := h.controller.DeleteTag(c.Context(), c.Params("id")); err != nil {
		return respondError(c, log, "failed to delete tag", err)
	}

	return c.JSON(fiber.Map{"message": "success"})
}

func (h *TagHandler) getPopularTags(c *fiber.Ctx) error {
	log := h.log.Function("getPopularTags")

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	tags, err := h.controller.GetPopularTags(c.Context(), limit)
	if err != nil {
		return respondError(c, log, "failed to get popular tags", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tags": tags})
}

func (h *TagHandler) searchTags(c *fiber.Ctx) error {
	log := h.log.Function("searchTags")

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	tags, err := h.controller.SearchTags(c.Context(), c.Query("q"), limit)
	if err != nil {
		return respondError(c, log, "failed to search tags", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tags": tags})
}

func (h *TagHandler) mergeTags(c *fiber.Ctx) error {
	log := h.log.Function("mergeTags")

	var request MergeTagsRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse merge request", err)
	}
	if err := request.Validate(); err != nil {
		return respondError(c, log, "invalid merge request", err)
	}

	if err := h.controller.MergeTags(c.Context(), request.SourceID, request.TargetID); err != nil {
		return respondError(c, log, "failed to merge tags", err)
	}

	return c.JSON(fiber.Map{"message": "success"})
}

func (h *TagHandler) getTagsByCategory(c *fiber.Ctx) error {
	log := h.log.Function("getTagsByCategory")

	tags, err := h.controller.GetTagsByCategory(c.Context(), c.Params("category"))
	if err != nil {
		return respondError(c, log, "failed to get tags by category", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tags": tags})
}

func (h *TagHandler) getRelatedTags(c *fiber.Ctx) error {
	log := h.log.Function("getRelatedTags")

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	tags, err := h.controller.GetRelatedTags(c.Context(), c.Params("id"), limit)
	if err != nil {
		return respondError(c, log, "failed to get related tags", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tags": tags})
}

func (h *TagHandler) getTagUsage(c *fiber.Ctx) error {
	log := h.log.Function("getTagUsage")

	count, err := h.controller.GetTagUsage(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to get tag usage", err)
	}

	return c.JSON(fiber.Map{"message": "success", "count": count})
}

func pagination(c *fiber.Ctx) (Pagination, error) {
	page, err := queryInt(c, "page", DefaultPage)
	if err != nil {
		return Pagination{}, err
	}
	limit, err := queryInt(c, "limit", DefaultLimit)
	if err != nil {
		return Pagination{}, err
	}
	return NewPagination(page, limit), nil
}
