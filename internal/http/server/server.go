package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"pdfexport/internal/config"
	"pdfexport/internal/domain"
	"pdfexport/internal/http/handlers"
	"pdfexport/internal/http/middleware"
)

// Deps are the collaborators of the HTTP app. Renderer is required; the rest
// are optional.
type Deps struct {
	Config   config.Config
	Renderer domain.Renderer
	Stats    handlers.StatsProvider
	Redis    *redis.Client
	Tokens   middleware.TokenStore
	Storage  fiber.Storage
}

// New creates and configures the Fiber app.
func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		AppName:               "pdfexport",
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             cfg.Limits.MaxBodyBytes,
		DisableStartupMessage: !cfg.Server.Debug,
		EnablePrintRoutes:     cfg.Server.Debug,
		ErrorHandler:          handlers.ErrorHandler,
	})

	middleware.Register(app, cfg, middleware.Deps{Tokens: d.Tokens, Storage: d.Storage})
	RegisterRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app.
func RegisterRoutes(app *fiber.App, d Deps) {
	svc := handlers.NewExportService(d.Config, d.Renderer, d.Redis)
	app.Post("/export-to-pdf", svc.HandleExport)

	if d.Stats != nil {
		app.Get("/chrome/stats", handlers.HandleChromeStats(d.Stats))
	}
	if d.Config.Server.Debug {
		app.Get("/monitor", monitor.New())
	}
}
