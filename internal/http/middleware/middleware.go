package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"pdfexport/internal/config"
	"pdfexport/internal/domain"
	"pdfexport/internal/infra/logging"
)

// TokenStore answers API key lookups.
type TokenStore interface {
	Ready() bool
	Validate(token string) bool
	RateLimit(token string) int
}

// Deps are the optional collaborators of the middleware chain.
type Deps struct {
	// Tokens enables X-API-Key authentication when non-nil.
	Tokens TokenStore
	// Storage backs the rate limiters; in-memory storage is used when nil.
	Storage fiber.Storage
}

// Register attaches global middleware to the app.
func Register(app *fiber.App, cfg config.Config, deps Deps) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return deps.Tokens == nil || deps.Tokens.Ready()
		},
	}))

	if deps.Tokens != nil {
		app.Use(KeyAuth(deps.Tokens))
	}

	limiters := NewLimiterCache(cfg.RateLimiter, deps.Storage)
	if deps.Tokens != nil {
		app.Use(TokenRateLimit(deps.Tokens, limiters))
	}
	if cfg.RateLimiter.UserLimit > 0 {
		app.Use(UserRateLimit(limiters))
	}

	app.Use(func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})
}

// KeyAuth validates X-API-Key against tokens. Requests without a key pass
// through and are subject to the per-client limiter instead.
func KeyAuth(tokens TokenStore) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: "api_key",
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !tokens.Ready() {
				return false, domain.ErrTokenStoreNotReady
			}
			if !tokens.Validate(key) {
				return false, domain.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Keyauth can call ErrorHandler with a nil error.
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			status := fiber.StatusUnauthorized
			if errors.Is(err, domain.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return fiber.NewError(status, err.Error())
		},
	})
}
