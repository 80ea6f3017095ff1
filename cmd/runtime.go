package cmd

import (
	"context"
	"fmt"

	"github.com/learnsmart/tutor/internal/cache"
	"github.com/learnsmart/tutor/internal/config"
	"github.com/learnsmart/tutor/internal/engine"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/llm"
	"github.com/learnsmart/tutor/internal/logger"
	"github.com/learnsmart/tutor/internal/store"
	"github.com/learnsmart/tutor/internal/tracing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runtime holds the dependencies shared by engine-backed commands.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	engine  *engine.Engine
	closers []func(context.Context) error
}

// newRuntime loads config, opens the store and builds the engine. The LLM
// is optional: when it cannot be configured the engine runs heuristic-only.
func newRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: log}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	rt.store, err = store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return rt.store.Close() })

	shutdown, err := tracing.Init(cfg.Tracing)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt.closers = append(rt.closers, shutdown)

	opts := []engine.Option{engine.WithLogger(log)}
	if cfg.Store.Audit {
		opts = append(opts, engine.WithAudit(rt.store.DecisionRepo()))
	}
	if cfg.Generator.Enabled {
		if gen := rt.buildGenerator(ctx); gen != nil {
			opts = append(opts, engine.WithGenerator(gen))
		}
	}
	rt.engine = engine.New(cfg.Engine, opts...)
	return rt, nil
}

// buildGenerator wires provider -> generator -> lesson cache -> guard.
// Failures are logged and leave the engine without a generator.
func (rt *runtime) buildGenerator(ctx context.Context) generator.ContentGenerator {
	provider, err := llm.NewProvider(ctx, rt.cfg.LLM, rt.store.EventRepo(), rt.logger)
	if err != nil {
		rt.logger.Warn("LLM provider not configured, generative strategy unavailable", zap.Error(err))
		return nil
	}

	var gen generator.ContentGenerator = generator.NewLLMGenerator(provider, rt.cfg.Generator.LLMConfig)
	lessons, err := cache.Open(ctx, rt.cfg.Cache, rt.cfg.Redis)
	switch {
	case err != nil:
		rt.logger.Warn("lesson cache disabled", zap.String("backend", rt.cfg.Cache.Backend), zap.Error(err))
	case lessons != nil:
		gen = generator.WithLessonCache(gen, lessons, rt.cfg.Cache.TTL, rt.logger)
		rt.closers = append(rt.closers, func(context.Context) error { return lessons.Close() })
	}

	rt.logger.Info("generative strategy enabled",
		zap.String("provider", provider.Name()), zap.String("model", provider.ModelID()))
	return generator.NewGuard(gen, rt.cfg.Generator.GuardConfig, rt.logger)
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	ctx := context.Background()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Warn("close", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}
