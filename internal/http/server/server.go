package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"rendercv-service/internal/config"
	"rendercv-service/internal/http/handlers"
	"rendercv-service/internal/http/middleware"
	"rendercv-service/internal/infra/cache"
	"rendercv-service/internal/infra/logging"
	"rendercv-service/internal/infra/renderpool"
	"rendercv-service/internal/notify"
	"rendercv-service/internal/render"
	"rendercv-service/internal/tokens"
	"rendercv-service/internal/upload"
)

// multipartOverhead is added to the upload ceiling for the request body
// limit so that an oversize file still reaches the handler's own check.
const multipartOverhead = 64 << 10

// Deps wires the app. Nil fields are either disabled (Redis, Tokens) or
// built from Config (Toolchain, Pool, Notifier, Store).
type Deps struct {
	Config    config.Config
	Redis     *redis.Client
	Toolchain render.Toolchain
	Pool      *renderpool.Pool
	Tokens    *tokens.Cache
	Notifier  notify.Notifier
	Store     fiber.Storage
}

// New creates and configures the Fiber app.
func New(d Deps) *fiber.App {
	cfg := d.Config
	maxUpload := int64(cfg.Limits.MaxUploadBytes)
	if maxUpload <= 0 {
		maxUpload = upload.DefaultMaxBytes
	}

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             int(maxUpload) + multipartOverhead,
		ErrorHandler:          errorHandler(maxUpload),
	})

	middleware.Register(app, cfg, middleware.Deps{Tokens: d.Tokens, Store: d.Store})
	registerRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, d Deps) {
	cfg := d.Config

	tc := d.Toolchain
	if tc == nil {
		tc = render.NewCLIToolchain(cfg.Render.RenderCVPath, cfg.Render.TypstPath)
	}
	pool := d.Pool
	if pool == nil {
		p, err := renderpool.NewPool(renderpool.ResolveSize(cfg.Render.PoolSize))
		if err != nil {
			logging.Warn("Render pool disabled", "error", err)
		}
		pool = p
	}
	var pdfCache *cache.PDFCache
	if cfg.Cache.PDFCacheEnabled {
		pdfCache = cache.NewPDFCache(d.Redis, cfg.Cache.PDFCacheTTL)
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.NewTelegramNotifier(cfg.Notify)
	}

	svc := handlers.NewRenderService(handlers.Deps{
		Config:   cfg,
		Pipeline: render.NewPipeline(tc),
		Pool:     pool,
		Cache:    pdfCache,
		Notifier: notifier,
	})

	app.Get("/health", handlers.Health)
	app.Get("/rendercv", handlers.RenderCVInfo)
	app.Post("/rendercv", svc.HandleRenderCV)
	app.Post("/rendersvg", svc.HandleRenderSVG)
	app.Get("/render/stats", svc.HandleStats)
	app.Get("/monitor", monitor.New())
}

// errorHandler renders every failure as {"error": message}.
func errorHandler(maxUpload int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code == fiber.StatusRequestEntityTooLarge && msg == fiber.ErrRequestEntityTooLarge.Message {
			msg = upload.TooLargeMessage(maxUpload)
		}

		if code >= fiber.StatusInternalServerError {
			logging.Error("Request failed", "path", c.Path(), "status", code, "error", err)
		} else {
			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)
		}

		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
