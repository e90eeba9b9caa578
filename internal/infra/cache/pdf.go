// Package cache stores rendered PDFs in Redis keyed by the uploaded YAML.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"rendercv-service/internal/infra/logging"
)

const (
	keyPrefix        = "pdfcache:"
	defaultTTL       = time.Minute
	operationTimeout = time.Second
)

type PDFCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPDFCache returns nil when rdb is nil; a nil *PDFCache is a cache
// that never hits.
func NewPDFCache(rdb *redis.Client, ttl time.Duration) *PDFCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PDFCache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key from the raw YAML upload.
func Key(yamlData []byte) string {
	sum := sha256.Sum256(yamlData)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached PDF, or nil on a miss or a Redis failure.
func (c *PDFCache) Get(ctx context.Context, key string) []byte {
	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil
	}
	logging.Info("PDF cache hit", "key", key)
	return data
}

func (c *PDFCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
