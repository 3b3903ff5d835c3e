package handlers

import (
	"reasondesk/internal/app"
	statsController "reasondesk/internal/controllers/stats"
	"reasondesk/internal/handlers/middleware"
	"reasondesk/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const defaultStatsDays = 365

type StatsHandler struct {
	Handler
	controller *statsController.StatsController
	dates      *utils.DateValidator
}

func NewStatsHandler(app app.App, router fiber.Router) *StatsHandler {
	return &StatsHandler{
		controller: app.StatsController,
		dates:      utils.NewDateValidator(),
		Handler:    newHandler(app, router, "stats_handler"),
	}
}

func (h *StatsHandler) Register() {
	stats := h.router.Group("/stats")
	stats.Get("/dashboard", h.getDashboard)
	stats.Get("/approval-rate", h.getApprovalRate)
	stats.Get("/body-parts", h.getBodyPartStats)
	stats.Get("/monthly", h.getMonthlyTrend)
	stats.Get("/symptoms", h.getSymptomPatterns)
	stats.Get("/feedback-time", h.getAverageFeedbackTime)
	stats.Get("/users/me", h.getMyPerformance)
	stats.Get("/users/:id", h.getUserPerformance)
}

func (h *StatsHandler) getDashboard(c *fiber.Ctx) error {
	log := h.log.Function("getDashboard")

	dateRange, err := parseDateRange(c, h.dates, defaultStatsDays)
	if err != nil {
		return badRequest(c, log, "invalid date range", err)
	}

	dashboard, err := h.controller.GetDashboard(c.Context(), dateRange)
	if err != nil {
		return respondError(c, log, "failed to get dashboard", err)
	}

	return c.JSON(fiber.Map{"message": "success", "dashboard": dashboard})
}

func (h *StatsHandler) getApprovalRate(c *fiber.Ctx) error {
	log := h.log.Function("getApprovalRate")

	dateRange, err := parseDateRange(c, h.dates, defaultStatsDays)
	if err != nil {
		return badRequest(c, log, "invalid date range", err)
	}

	stats, err := h.controller.GetApprovalRate(c.Context(), dateRange)
	if err != nil {
		return respondError(c, log, "failed to get approval rate", err)
	}

	return c.JSON(fiber.Map{"message": "success", "stats": stats})
}

func (h *StatsHandler) getBodyPartStats(c *fiber.Ctx) error {
	log := h.log.Function("getBodyPartStats")

	stats, err := h.controller.GetBodyPartStats(c.Context())
	if err != nil {
		return respondError(c, log, "failed to get body part stats", err)
	}

	return c.JSON(fiber.Map{"message": "success", "stats": stats})
}

func (h *StatsHandler) getMonthlyTrend(c *fiber.Ctx) error {
	log := h.log.Function("getMonthlyTrend")

	year, err := queryInt(c, "year", 0)
	if err != nil {
		return respondError(c, log, "invalid year", err)
	}

	trend, err := h.controller.GetMonthlyTrend(c.Context(), year)
	if err != nil {
		return respondError(c, log, "failed to get monthly trend", err)
	}

	return c.JSON(fiber.Map{"message": "success", "trend": trend})
}

func (h *StatsHandler) getSymptomPatterns(c *fiber.Ctx) error {
	log := h.log.Function("getSymptomPatterns")

	minCount, err := queryInt(c, "minCount", 0)
	if err != nil {
		return respondError(c, log, "invalid minCount", err)
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, log, "invalid limit", err)
	}

	patterns, err := h.controller.GetSymptomPatterns(c.Context(), minCount, limit)
	if err != nil {
		return respondError(c, log, "failed to get symptom patterns", err)
	}

	return c.JSON(fiber.Map{"message": "success", "patterns": patterns})
}

func (h *StatsHandler) getAverageFeedbackTime(c *fiber.Ctx) error {
	log := h.log.Function("getAverageFeedbackTime")

	seconds, err := h.controller.GetAverageFeedbackTime(c.Context())
	if err != nil {
		return respondError(c, log, "failed to get average feedback time", err)
	}

	return c.JSON(fiber.Map{"message": "success", "seconds": seconds})
}

func (h *StatsHandler) getMyPerformance(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).
			JSON(fiber.Map{"message": "unauthorized", "error": "no authenticated user"})
	}
	return h.performance(c, userID)
}

func (h *StatsHandler) getUserPerformance(c *fiber.Ctx) error {
	return h.performance(c, c.Params("id"))
}

func (h *StatsHandler) performance(c *fiber.Ctx, userID string) error {
	log := h.log.Function("performance")

	performance, err := h.controller.GetUserPerformance(c.Context(), userID)
	if err != nil {
		return respondError(c, log, "failed to get user performance", err)
	}

	return c.JSON(fiber.Map{"message": "success", "performance": performance})
}
