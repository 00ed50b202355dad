package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"

	"pdfexport/internal/config"
	"pdfexport/internal/http/server"
	"pdfexport/internal/infra/chrome"
	"pdfexport/internal/infra/logging"
	"pdfexport/internal/infra/ratelimit"
	"pdfexport/internal/infra/tokens"
)

func main() {
	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	if cfg.Server.Debug {
		logging.SetLogLevel("debug")
		logging.Warn("Debug mode enabled; do not expose this instance publicly")
	}

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logging.Debug("maxprocs", "detail", format, "args", args)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	renderer := chrome.NewRenderer(cfg.PDF)
	defer renderer.Close()

	deps := server.Deps{
		Config:   cfg,
		Renderer: renderer,
		Stats:    renderer,
		Storage:  limiterStorage(cfg),
	}

	if cfg.Cache.PDFCacheEnabled && cfg.Cache.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
		defer rdb.Close()
		deps.Redis = rdb
	}

	if cfg.Auth.Enabled {
		store := tokens.NewStore(cfg.Auth.Postgres)
		defer store.Close()
		if err := store.Load(ctx); err != nil {
			logging.Error("Failed to load API tokens", "error", err)
		}
		go store.RefreshPeriodically(ctx, cfg.Auth.ReloadInterval)
		deps.Tokens = store
	}

	app := server.New(deps)

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// limiterStorage returns the rate limiter storage, or nil when no limiter is
// enabled.
func limiterStorage(cfg config.Config) fiber.Storage {
	if cfg.RateLimiter.UserLimit <= 0 && !cfg.Auth.Enabled {
		return nil
	}
	return ratelimit.NewStore(ratelimit.RedisConfig{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.RateLimitDB,
	})
}

// startServer starts the Fiber app and blocks until a termination signal
// has been handled.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		logging.Info("Server listening", "addr", cfg.Server.Addr(), "debug", cfg.Server.Debug)
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
