package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"rendercv-service/internal/config"
	"rendercv-service/internal/domain"
	"rendercv-service/internal/infra/logging"
	"rendercv-service/internal/infra/ratelimit"
	"rendercv-service/internal/tokens"
)

const (
	APIKeyHeader = "X-API-Key"
	apiKeyLocal  = "api_key"
	renderScope  = "render"
)

// Deps are optional collaborators. Without Tokens, API keys are ignored
// and every caller is treated as anonymous. Without Store, one is built
// from the cache config.
type Deps struct {
	Tokens *tokens.Cache
	Store  fiber.Storage
}

// Register attaches global middleware to the app.
func Register(app *fiber.App, cfg config.Config, deps Deps) {
	store := deps.Store
	if store == nil {
		store = ratelimit.NewStore(ratelimit.RedisConfig{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		})
	}

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return deps.Tokens == nil || deps.Tokens.Ready()
		},
	}))

	rl := RateLimitConfig{
		RateInterval:           cfg.RateLimiter.Interval,
		EnableTokenRateLimiter: deps.Tokens != nil,
		EnableUserLimiter:      cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0,
		UserLimit:              cfg.RateLimiter.UserLimit,
	}

	if deps.Tokens != nil {
		app.Use(APIKeyAuth(deps.Tokens))
		app.Use(TokenRateLimit(rl, deps.Tokens, store, NewLimiterCache()))
	}
	if rl.EnableUserLimiter {
		app.Use(UserRateLimit(rl, store))
	}

	app.Use(RequestLog())
}

// APIKeyAuth validates X-API-Key when present. Requests without the header
// pass through as anonymous.
func APIKeyAuth(cache *tokens.Cache) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + APIKeyHeader,
		ContextKey: apiKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if err := cache.Validate(key, renderScope); err != nil {
				return false, err
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get(APIKeyHeader) == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may pass a nil error.
			if err == nil {
				err = domain.ErrInvalidAPIKey
			}
			status := fiber.StatusUnauthorized
			if errors.Is(err, domain.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			logging.Warn("API key rejected", "path", c.Path(), "error", err)
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		},
	})
}

func RequestLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	}
}
