package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/services"
)

type AppConfig struct {
	Name      string
	BodyLimit int
	Tokens    map[string]string
	AccessLog bool
}

// NewApp builds the fiber application with middleware and every route.
func NewApp(cfg AppConfig, service services.ManifestService, log *zap.Logger) *fiber.App {
	if cfg.Name == "" {
		cfg.Name = "SafeShipper Manifest API"
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.Name,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	uploadHandler := NewUploadHandler(service, log)
	manifestHandler := NewManifestHandler(service, log)
	shipmentHandler := NewShipmentHandler(service, log)

	// Registered after /health so the health check stays public.
	secured := api.Group("", BearerAuth(cfg.Tokens))

	secured.Post("/manifests/upload-and-analyze", uploadHandler.HandleUpload)
	secured.Get("/manifests/poll-status/:shipmentId", manifestHandler.HandlePollStatus)
	secured.Get("/manifests", manifestHandler.HandleList)
	secured.Get("/manifests/:id", manifestHandler.HandleGet)
	secured.Post("/manifests/:id/confirm_dangerous_goods", manifestHandler.HandleConfirm)
	secured.Post("/manifests/:id/finalize", manifestHandler.HandleFinalize)

	secured.Post("/shipments", shipmentHandler.HandleCreate)
	secured.Get("/shipments", shipmentHandler.HandleList)
	secured.Get("/shipments/:id", shipmentHandler.HandleGet)
	secured.Post("/shipments/:id/finalize-from-manifest", shipmentHandler.HandleFinalizeFromManifest)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": cfg.Name,
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/manifests/upload-and-analyze/",
				"GET /api/v1/manifests/poll-status/:shipmentId/",
				"POST /api/v1/manifests/:id/confirm_dangerous_goods/",
				"POST /api/v1/manifests/:id/finalize/",
				"POST /api/v1/shipments/:id/finalize-from-manifest/",
			},
		})
	})

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
