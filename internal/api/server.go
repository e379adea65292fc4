package api

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ServerConfig holds what NewApp needs beyond the handlers.
type ServerConfig struct {
	// StaticDir, when set, is served at / with index.html as the fallback
	// for client-side routes.
	StaticDir   string
	CORSOrigins string
	// BodyLimit caps request bodies. Multipart overhead is added on top of
	// the upload limit so an upload just under it still reaches the handler.
	BodyLimit int
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewApp builds the fiber app with middleware and routes.
func NewApp(h *Handler, cfg ServerConfig, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statement-ledger",
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          ErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(RequestLogger(log))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	RegisterRoutes(app, h)

	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	if cfg.StaticDir != "" {
		serveStatic(app, cfg.StaticDir)
	}
	return app
}

// RegisterRoutes mounts the API endpoints.
func RegisterRoutes(r fiber.Router, h *Handler) {
	api := r.Group("/api")
	api.Get("/health", h.HandleHealth)
	api.Post("/preview", h.HandlePreview)
	api.Post("/convert", h.HandleConvert)
	api.Post("/parse-text", h.HandleParseText)
	api.Get("/downloads/:name", h.HandleDownload)
}

func serveStatic(app *fiber.App, dir string) {
	app.Static("/", dir)
	index := filepath.Join(dir, "index.html")
	app.Get("/*", func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return fiber.ErrNotFound
		}
		if _, err := os.Stat(index); err != nil {
			return fiber.ErrNotFound
		}
		return c.SendFile(index)
	})
}
