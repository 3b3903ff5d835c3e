package handlers

import (
	"reasondesk/internal/app"
	caseRecordController "reasondesk/internal/controllers/caseRecords"
	tagController "reasondesk/internal/controllers/tags"
	"reasondesk/internal/handlers/middleware"
	. "reasondesk/internal/models"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type CaseRecordHandler struct {
	Handler
	controller    *caseRecordController.CaseRecordController
	tagController *tagController.TagController
}

func NewCaseRecordHandler(app app.App, router fiber.Router) *CaseRecordHandler {
	return &CaseRecordHandler{
		controller:    app.CaseRecordController,
		tagController: app.TagController,
		Handler:       newHandler(app, router, "caseRecord_handler"),
	}
}

func (h *CaseRecordHandler) Register() {
	records := h.router.Group("/case-records")
	records.Post("/", h.createRecord)
	records.Get("/", h.searchRecords)
	records.Post("/search", h.searchRecordsBody)
	records.Get("/:id", h.getRecord)
	records.Put("/:id", h.updateRecord)
	records.Delete("/:id", h.deleteRecord)
	records.Get("/:id/similar", h.findSimilar)
	records.Post("/:id/tags", h.addTags)
	records.Delete("/:id/tags", h.removeTags)
	records.Post("/:id/tags/assign", h.assignTags)
	records.Put("/:id/status", h.updateStatus)
	records.Post("/:id/reason-letter", h.draftReasonLetter)
}

func (h *CaseRecordHandler) createRecord(c *fiber.Ctx) error {
	log := h.log.Function("createRecord")

	var request CreateCaseRecordRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse case record request", err)
	}

	record, err := h.controller.CreateRecord(c.Context(), request, middleware.UserID(c))
	if err != nil {
		return respondError(c, log, "failed to create case record", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "success", "caseRecord": record})
}

func (h *CaseRecordHandler) getRecord(c *fiber.Ctx) error {
	log := h.log.Function("getRecord")

	record, err := h.controller.GetRecordByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to get case record", err)
	}

	return c.JSON(fiber.Map{"message": "success", "caseRecord": record})
}

func (h *CaseRecordHandler) updateRecord(c *fiber.Ctx) error {
	log := h.log.Function("updateRecord")

	var request UpdateCaseRecordRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse case record request", err)
	}

	record, err := h.controller.UpdateRecord(c.Context(), c.Params("id"), request, middleware.UserID(c))
	if err != nil {
		return respondError(c, log, "failed to update case record", err)
	}

	return c.JSON(fiber.Map{"message": "success", "caseRecord": record})
}

func (h *CaseRecordHandler) deleteRecord(c *fiber.Ctx) error {
	log := h.log.Function("deleteRecord")

	if err := h.controller.DeleteRecord(c.Context(), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, log, "failed to delete case record", err)
	}

	return c.JSON(fiber.Map{"message": "success"})
}

// searchRecords reads the query from the URL: query, keyword,
// tags (comma separated), threshold, page, limit.
func (h *CaseRecordHandler) searchRecords(c *fiber.Ctx) error {
	log := h.log.Function("searchRecords")

	query := CaseRecordSearchQuery{
		Query:   c.Query("query"),
		Keyword: c.Query("keyword"),
		Tags:    splitList(c.Query("tags")),
	}

	var err error
	if raw := c.Query("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return badRequest(c, log, "invalid threshold", err)
		}
		query.Threshold = &threshold
	}
	if query.Page, err = queryInt(c, "page", DefaultPage); err != nil {
		return respondError(c, log, "invalid page", err)
	}
	if query.Limit, err = queryInt(c, "limit", DefaultLimit); err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	return h.search(c, query)
}

func (h *CaseRecordHandler) searchRecordsBody(c *fiber.Ctx) error {
	log := h.log.Function("searchRecordsBody")

	var query CaseRecordSearchQuery
	if err := c.BodyParser(&query); err != nil {
		return badRequest(c, log, "failed to parse search request", err)
	}

	return h.search(c, query)
}

func (h *CaseRecordHandler) search(c *fiber.Ctx, query CaseRecordSearchQuery) error {
	log := h.log.Function("search")

	result, err := h.controller.SearchRecords(c.Context(), query)
	if err != nil {
		return respondError(c, log, "failed to search case records", err)
	}

	return c.JSON(fiber.Map{"message": "success", "caseRecords": result})
}

func (h *CaseRecordHandler) findSimilar(c *fiber.Ctx) error {
	log := h.log.Function("findSimilar")

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	records, err := h.controller.FindSimilar(c.Context(), c.Params("id"), limit)
	if err != nil {
		return respondError(c, log, "failed to find similar case records", err)
	}

	return c.JSON(fiber.Map{"message": "success", "caseRecords": records})
}

func (h *CaseRecordHandler) addTags(c *fiber.Ctx) error {
	log := h.log.Function("addTags")

	var request TagIDsRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse tag request", err)
	}
	if err := request.Validate(); err != nil {
		return respondError(c, log, "invalid tag request", err)
	}

	record, err := h.controller.AddTags(c.Context(), c.Params("id"), request.TagIDs)
	if err != nil {
		return respondError(c, log, "failed to add tags", err)
	}

	return c.JSON(fiber.Map{"message": "success", "caseRecord": record})
}

func (h *CaseRecordHandler) removeTags(c *fiber.Ctx) error {
	log := h.log.Function("removeTags")

	var request TagIDsRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse tag request", err)
	}
	if err := request.Validate(); err != nil {
		return respondError(c, log, "invalid tag request", err)
	}

	record, err := h.controller.RemoveTags(c.Context(), c.Params("id"), request.TagIDs)
	if err != nil {
		return respondError(c, log, "failed to remove tags", err)
	}

	return c.JSON(fiber.Map{"message": "success", "caseRecord": record})
}

func (h *CaseRecordHandler) assignTags(c *fiber.Ctx) error {
	log := h.log.Function("assignTags")

	var request AssignTagsRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse assign request", err)
	}
	if err := request.Validate(); err != nil {
		return respondError(c, log, "invalid assign request", err)
	}

	names, err := h.tagController.AssignTagsToRecord(c.Context(), c.Params("id"), request.Text)
	if err != nil {
		return respondError(c, log, "failed to assign tags", err)
	}

	return c.JSON(fiber.Map{"message": "success", "tags": names})
}

func (h *CaseRecordHandler) updateStatus(c *fiber.Ctx) error {
	log := h.log.Function("updateStatus")

	var request UpdateApprovalStatusRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse status request", err)
	}

	record, err := h.controller.UpdateApprovalStatus(c.Context(), c.Params("id"), request.Status, middleware.UserID(c))
	if err != nil {
		return respondError(c, log, "failed to update approval status", err)
	}

	return c.JSON(fiber.Map{"message": "success", "caseRecord": record})
}

func (h *CaseRecordHandler) draftReasonLetter(c *fiber.Ctx) error {
	log := h.log.Function("draftReasonLetter")

	letter, err := h.controller.DraftReasonLetter(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to draft reason letter", err)
	}

	return c.JSON(fiber.Map{"message": "success", "reasonLetter": letter})
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
