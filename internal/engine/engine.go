// Package engine is the facade the transport and the CLI call. It resolves
// the per-call strategy and generator timeout, runs one decision component,
// and records the outcome in metrics, traces and the decision audit log.
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/feedback"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/itemselect"
	"github.com/learnsmart/tutor/internal/mastery"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/planner"
	"github.com/learnsmart/tutor/internal/replan"
	"github.com/learnsmart/tutor/internal/store"
	"github.com/learnsmart/tutor/internal/tracing"
)

// Operation names used for metrics, spans and audit records.
const (
	OpGeneratePlan    = "generate_plan"
	OpReplan          = "replan"
	OpNextItem        = "next_item"
	OpGrade           = "grade"
	OpUpdateMastery   = "update_mastery"
	OpGenerateLessons = "generate_lessons"
)

// Config holds engine-wide defaults.
type Config struct {
	// DefaultStrategy applies when a call does not name one.
	DefaultStrategy model.Strategy `mapstructure:"default_strategy"`

	// CallTimeout bounds each generator call when the caller gives none.
	// Zero leaves the guard's own default in place.
	CallTimeout time.Duration `mapstructure:"call_timeout"`

	// LessonLocale is used when a lesson request names no locale.
	LessonLocale string `mapstructure:"lesson_locale"`

	Mastery    mastery.Config    `mapstructure:"mastery"`
	ItemSelect itemselect.Config `mapstructure:"item_select"`
}

// DefaultConfig returns the heuristic-first defaults.
func DefaultConfig() Config {
	return Config{
		DefaultStrategy: model.StrategyHeuristic,
		LessonLocale:    "es-ES",
		Mastery:         mastery.DefaultConfig(),
		ItemSelect:      itemselect.DefaultConfig(),
	}
}

// Engine runs decisions. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	gen    generator.ContentGenerator
	audit  store.DecisionRepo
	logger *zap.Logger

	agg       *mastery.Aggregator
	planner   *planner.Planner
	replanner *replan.Replanner
	selector  *itemselect.Selector
	judge     *feedback.Judge
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator enables the generative strategy. Without it every call
// runs heuristically.
func WithGenerator(gen generator.ContentGenerator) Option {
	return func(e *Engine) { e.gen = gen }
}

// WithAudit records every decision in repo.
func WithAudit(repo store.DecisionRepo) Option {
	return func(e *Engine) { e.audit = repo }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = model.StrategyHeuristic
	}
	if cfg.LessonLocale == "" {
		cfg.LessonLocale = DefaultConfig().LessonLocale
	}
	if cfg.Mastery == (mastery.Config{}) {
		cfg.Mastery = mastery.DefaultConfig()
	}

	e := &Engine{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	e.agg = mastery.NewAggregator(cfg.Mastery)
	e.planner = planner.New(e.gen, e.logger.Named("planner"))
	e.replanner = replan.New(e.gen, e.agg, e.logger.Named("replan"))
	e.selector = itemselect.New(e.gen, cfg.ItemSelect, e.logger.Named("itemselect"))
	e.judge = feedback.New(e.gen, e.logger.Named("feedback"))
	return e
}

// Config returns the engine config.
func (e *Engine) Config() Config { return e.cfg }

// Aggregator exposes the mastery aggregator, e.g. for band display.
func (e *Engine) Aggregator() *mastery.Aggregator { return e.agg }

// CallOptions are the per-call knobs shared by every request.
type CallOptions struct {
	Strategy model.Strategy
	// Timeout bounds each generator call made for this request.
	Timeout time.Duration
}

// begin resolves the strategy, attaches the generator timeout and opens a
// span for op.
func (e *Engine) begin(ctx context.Context, op string, opts CallOptions) (context.Context, *decision) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = e.cfg.DefaultStrategy
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.cfg.CallTimeout
	}
	if timeout > 0 {
		ctx = generator.WithCallTimeout(ctx, timeout)
	}

	ctx, span := tracing.Start(ctx, "engine."+op,
		attribute.String("tutor.strategy.requested", string(strategy)))
	return ctx, &decision{
		op:        op,
		requested: strategy,
		started:   time.Now(),
		span:      span,
		record:    store.Decision{Op: op, Strategy: strategy},
	}
}
