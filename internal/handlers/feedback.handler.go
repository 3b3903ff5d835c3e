package handlers

import (
	"reasondesk/internal/app"
	feedbackController "reasondesk/internal/controllers/feedback"
	"reasondesk/internal/handlers/middleware"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/utils"
	"time"

	"github.com/gofiber/fiber/v2"
)

type FeedbackHandler struct {
	Handler
	controller *feedbackController.FeedbackController
	dates      *utils.DateValidator
}

func NewFeedbackHandler(app app.App, router fiber.Router) *FeedbackHandler {
	return &FeedbackHandler{
		controller: app.FeedbackController,
		dates:      utils.NewDateValidator(),
		Handler:    newHandler(app, router, "feedback_handler"),
	}
}

func (h *FeedbackHandler) Register() {
	feedback := h.router.Group("/feedback")
	feedback.Post("/", h.createFeedback)
	feedback.Get("/", h.listFeedback)
	feedback.Get("/case-record/:id", h.getFeedbackForRecord)
	feedback.Get("/stats/approval-rate", h.getApprovalRate)
	feedback.Get("/trends", h.getTrends)
	feedback.Get("/rejection-reasons", h.getRejectionReasons)
	feedback.Get("/category/:category", h.getFeedbackByCategory)
	feedback.Get("/:id", h.getFeedback)
	feedback.Put("/:id", h.updateFeedback)
	feedback.Delete("/:id", h.deleteFeedback)
}

func (h *FeedbackHandler) createFeedback(c *fiber.Ctx) error {
	log := h.log.Function("createFeedback")

	var request CreateFeedbackRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse feedback request", err)
	}

	feedback, err := h.controller.CreateFeedback(c.Context(), request, middleware.UserID(c))
	if err != nil {
		return respondError(c, log, "failed to create feedback", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "success", "feedback": feedback})
}

func (h *FeedbackHandler) listFeedback(c *fiber.Ctx) error {
	log := h.log.Function("listFeedback")

	page, err := pagination(c)
	if err != nil {
		return respondError(c, log, "invalid pagination", err)
	}

	result, err := h.controller.ListFeedback(c.Context(), page)
	if err != nil {
		return respondError(c, log, "failed to list feedback", err)
	}

	return c.JSON(fiber.Map{"message": "success", "feedback": result})
}

func (h *FeedbackHandler) getFeedback(c *fiber.Ctx) error {
	log := h.log.Function("getFeedback")

	feedback, err := h.controller.GetFeedback(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to get feedback", err)
	}

	return c.JSON(fiber.Map{"message": "success", "feedback": feedback})
}

func (h *FeedbackHandler) updateFeedback(c *fiber.Ctx) error {
	log := h.log.Function("updateFeedback")

	var request UpdateFeedbackRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, log, "failed to parse feedback request", err)
	}

	feedback, err := h.controller.UpdateFeedback(c.Context(), c.Params("id"), request, middleware.UserID(c))
	if err != nil {
		return respondError(c, log, "failed to update feedback", err)
	}

	return c.JSON(fiber.Map{"message": "success", "feedback": feedback})
}

func (h *FeedbackHandler) deleteFeedback(c *fiber.Ctx) error {
	log := h.log.Function("deleteFeedback")

	if err := h.controller.DeleteFeedback(c.Context(), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, log, "failed to delete feedback", err)
	}

	return c.JSON(fiber.Map{"message": "success"})
}

func (h *FeedbackHandler) getFeedbackForRecord(c *fiber.Ctx) error {
	log := h.log.Function("getFeedbackForRecord")

	feedback, err := h.controller.GetFeedbacksByCaseRecordID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, log, "failed to get feedback for case record", err)
	}

	return c.JSON(fiber.Map{"message": "success", "feedback": feedback})
}

func (h *FeedbackHandler) getFeedbackByCategory(c *fiber.Ctx) error {
	log := h.log.Function("getFeedbackByCategory")

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	feedback, err := h.controller.GetFeedbacksByCategory(c.Context(), c.Params("category"), limit)
	if err != nil {
		return respondError(c, log, "failed to get feedback by category", err)
	}

	return c.JSON(fiber.Map{"message": "success", "feedback": feedback})
}

func (h *FeedbackHandler) getRejectionReasons(c *fiber.Ctx) error {
	log := h.log.Function("getRejectionReasons")

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	reasons, err := h.controller.GetRejectionReasons(c.Context(), limit)
	if err != nil {
		return respondError(c, log, "failed to get rejection reasons", err)
	}

	return c.JSON(fiber.Map{"message": "success", "reasons": reasons})
}

func (h *FeedbackHandler) getApprovalRate(c *fiber.Ctx) error {
	log := h.log.Function("getApprovalRate")

	dateRange, err := parseDateRange(c, h.dates, repositories.DefaultTrendDays)
	if err != nil {
		return badRequest(c, log, "invalid date range", err)
	}

	stats, err := h.controller.GetApprovalRateStats(c.Context(), dateRange)
	if err != nil {
		return respondError(c, log, "failed to get approval rate", err)
	}

	return c.JSON(fiber.Map{"message": "success", "stats": stats})
}

func (h *FeedbackHandler) getTrends(c *fiber.Ctx) error {
	log := h.log.Function("getTrends")

	days, err := queryInt(c, "days", repositories.DefaultTrendDays)
	if err != nil {
		return respondError(c, log, "invalid days", err)
	}

	trends, err := h.controller.GetFeedbackTrends(c.Context(), days)
	if err != nil {
		return respondError(c, log, "failed to get feedback trends", err)
	}

	return c.JSON(fiber.Map{"message": "success", "trends": trends})
}

// parseDateRange reads the start and end query values in any supported
// date format.
func parseDateRange(c *fiber.Ctx, dates *utils.DateValidator, defaultDays int) (DateRange, error) {
	start, end, err := dates.ParseDateRange(c.Query("start"), c.Query("end"), defaultDays, time.Now())
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: start, End: end}, nil
}
