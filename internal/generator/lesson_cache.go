package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/cache"
	"github.com/learnsmart/tutor/internal/model"
)

// CachedLessons memoizes GenerateLessons results by request. Other methods
// pass through to the wrapped generator.
type CachedLessons struct {
	ContentGenerator
	store  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// WithLessonCache wraps inner. A nil store returns inner unchanged.
func WithLessonCache(inner ContentGenerator, store cache.Store, ttl time.Duration, logger *zap.Logger) ContentGenerator {
	if store == nil {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLessons{ContentGenerator: inner, store: store, ttl: ttl, logger: logger}
}

func lessonKey(req LessonRequest) string {
	return fmt.Sprintf("lessons:%s:%d:%s:%s:%s",
		strings.ToLower(req.Domain), req.N, req.Level, req.Difficulty, req.Locale)
}

// GenerateLessons serves from cache when possible. Cache failures degrade
// to a direct call.
func (c *CachedLessons) GenerateLessons(ctx context.Context, req LessonRequest) ([]model.Lesson, error) {
	key := lessonKey(req)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("lesson cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var lessons []model.Lesson
		if err := json.Unmarshal(raw, &lessons); err == nil {
			return lessons, nil
		}
		c.logger.Warn("discarding corrupt lesson cache entry", zap.String("key", key))
	}

	lessons, err := c.ContentGenerator.GenerateLessons(ctx, req)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(lessons); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("lesson cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return lessons, nil
}
