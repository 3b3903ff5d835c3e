package handlers

import (
	"reasondesk/internal/app"
	"reasondesk/internal/handlers/middleware"
	"reasondesk/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func newHandler(app app.App, router fiber.Router, file string) Handler {
	return Handler{
		log:        logger.New("handlers").File(file),
		router:     router,
		middleware: app.Middleware,
	}
}

func Router(router fiber.Router, app *app.App) (err error) {
	setupWebSocketRoute(router, app)

	api := router.Group("/api")
	HealthHandler(api, app.Config, app.Database)

	api.Use(app.Middleware.RateLimit())
	NewAuthHandler(*app, api).Register()

	protected := api.Group("", app.Middleware.AuthRequired(), app.Middleware.UserRateLimit())
	NewCaseRecordHandler(*app, protected).Register()
	NewTagHandler(*app, protected).Register()
	NewFeedbackHandler(*app, protected).Register()
	NewStatsHandler(*app, protected).Register()
	NewUserHandler(*app, protected).Register()
	NewClientHandler(*app, protected).Register()
	NewExhibitionHandler(*app, protected).Register()
	NewMeetingHandler(*app, protected).Register()
	NewAdminHandler(*app, protected).Register()

	return nil
}

func setupWebSocketRoute(router fiber.Router, app *app.App) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, app.Middleware.AuthRequired())
	router.Get("/ws", websocket.New(func(c *websocket.Conn) {
		app.Websocket.HandleWebSocket(c)
	}))
}
