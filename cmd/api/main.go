package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reasondesk/internal/app"
	"reasondesk/internal/handlers"
	"reasondesk/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	log := logger.New("main").Function("run")

	a, err := app.New()
	if err != nil {
		return log.Err("failed to initialize app", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Er("failed to close app", err)
		}
	}()

	logger.Configure(a.Config.Environment, a.Config.LogLevel)

	server := fiber.New(fiber.Config{
		AppName:      "reasondesk",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 << 20,
	})

	server.Use(recover.New())
	server.Use(fiberLogger.New(fiberLogger.Config{
		Format: "${time} ${status} ${latency} ${method} ${path}\n",
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: a.Config.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	if err := handlers.Router(server, a); err != nil {
		return log.Err("failed to register routes", err)
	}

	errCh := make(chan error, 1)
	go func() {
		address := fmt.Sprintf(":%d", a.Config.ServerPort)
		log.Info("Starting server", "address", address, "environment", a.Config.Environment)
		errCh <- server.Listen(address)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return log.Err("server stopped", err)
		}
		return nil
	case sig := <-quit:
		log.Info("Shutting down server", "signal", sig.String())
	}

	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		return log.Err("failed to shut down server", err)
	}

	log.Info("Server stopped")
	return nil
}
