package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	memoryStorage "github.com/gofiber/storage/memory/v2"

	"pdfexport/internal/config"
	"pdfexport/internal/infra/logging"
)

// LimiterCache shares limiter handlers per limit value so every token with
// the same limit reuses one sliding window configuration.
type LimiterCache struct {
	cfg     config.RateLimiterConfig
	storage fiber.Storage

	mu       sync.RWMutex
	handlers map[int]fiber.Handler
	user     fiber.Handler
}

func NewLimiterCache(cfg config.RateLimiterConfig, storage fiber.Storage) *LimiterCache {
	if storage == nil {
		storage = memoryStorage.New()
	}
	return &LimiterCache{cfg: cfg, storage: storage, handlers: make(map[int]fiber.Handler)}
}

// ForToken returns the limiter handler for the given per-token limit.
func (lc *LimiterCache) ForToken(limit int) fiber.Handler {
	lc.mu.RLock()
	h, ok := lc.handlers[limit]
	lc.mu.RUnlock()
	if ok {
		return h
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if h, ok := lc.handlers[limit]; ok {
		return h
	}
	h = limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        lc.cfg.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           lc.storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			token, _ := c.Locals("api_key").(string)
			return "token:" + token
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "path", c.Path())
			return fiber.NewError(fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
	lc.handlers[limit] = h
	return h
}

// ForUser returns the limiter keyed by client IP and User-Agent.
func (lc *LimiterCache) ForUser() fiber.Handler {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.user != nil {
		return lc.user
	}
	lc.user = limiter.New(limiter.Config{
		Max:               lc.cfg.UserLimit,
		Expiration:        lc.cfg.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           lc.storage,
		KeyGenerator:      userKey,
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", userKey(c), "path", c.Path())
			return fiber.NewError(fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
	return lc.user
}

func userKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return "user:" + hex.EncodeToString(sum[:])
}

// TokenRateLimit applies the per-token limit of authenticated requests.
func TokenRateLimit(tokens TokenStore, lc *LimiterCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("api_key").(string)
		if !ok || token == "" {
			return c.Next()
		}
		limit := tokens.RateLimit(token)
		if limit <= 0 {
			return c.Next()
		}
		return lc.ForToken(limit)(c)
	}
}

// UserRateLimit limits anonymous requests per client. Requests authenticated
// via X-API-Key are skipped; token limits already apply to them.
func UserRateLimit(lc *LimiterCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals("api_key").(string); ok && token != "" {
			return c.Next()
		}
		return lc.ForUser()(c)
	}
}
