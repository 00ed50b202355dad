package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfexport/internal/config"
	"pdfexport/internal/infra/logging"
)

// computePDFCacheKey creates a SHA256-based cache key from the rendered
// document and the page settings.
func computePDFCacheKey(doc string, cfg config.PDFConfig) string {
	h := sha256.New()
	h.Write([]byte(doc))
	h.Write([]byte(cfg.DefaultPaper))
	h.Write([]byte(strconv.FormatBool(cfg.ApplyStylesheet)))
	h.Write([]byte(strconv.FormatFloat(cfg.MarginInches, 'f', 2, 64)))
	return "pdfcache:" + hex.EncodeToString(h.Sum(nil))
}

// getCachedPDF returns nil without error on a cache miss.
func getCachedPDF(ctx context.Context, rdb *redis.Client, key string) ([]byte, error) {
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	cached, err := rdb.Get(ctxRedis, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, err
	}

	logging.Info("PDF cache hit", "key", key)
	return cached, nil
}

// setCachedPDF stores a PDF; a non-positive ttl means one minute.
func setCachedPDF(ctx context.Context, rdb *redis.Client, key string, data []byte, ttl time.Duration) {
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if ttl <= 0 {
		ttl = 1 * time.Minute
	}

	if err := rdb.Set(ctxRedis, key, data, ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
