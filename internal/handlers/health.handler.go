package handlers

import (
	"context"
	"reasondesk/config"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"
	"time"

	"github.com/gofiber/fiber/v2"
)

func HealthHandler(router fiber.Router, config config.Config, db database.DB) {
	log := logger.New("handlers").File("health_handler").Function("health")

	router.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		status := "ok"
		if sqlDB, err := db.SQL.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			log.Warn("database ping failed", "error", err)
			status = "degraded"
		}

		code := fiber.StatusOK
		if status != "ok" {
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"message":     "success",
			"status":      status,
			"environment": config.Environment,
			"cache":       db.HasCache(),
			"timestamp":   time.Now().UTC(),
		})
	})
}
