// Package cache provides the byte-oriented key/value stores used to memoize
// generated content: an in-process LRU and a shared Redis backend.
package cache

import (
	"context"
	"time"

	"github.com/learnsmart/tutor/internal/metrics"
)

// Store is a TTL key/value store. Get reports a miss with ok=false and a
// nil error; errors are reserved for backend failures.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}

// Config selects and sizes the backend.
type Config struct {
	// Backend is "memory", "redis" or "none".
	Backend string        `mapstructure:"backend"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: "memory",
		Size:    256,
		TTL:     time.Hour,
		Prefix:  "tutor:",
	}
}

func observe(backend string, ok bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(backend, result).Inc()
}
