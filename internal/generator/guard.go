package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/learnsmart/tutor/internal/metrics"
	"github.com/learnsmart/tutor/internal/model"
)

// Operation names, used for metrics, logs and error values.
const (
	OpPlan    = "generate_plan"
	OpRevise  = "revise_modules"
	OpItem    = "generate_item"
	OpJudge   = "judge_open_answer"
	OpExplain = "explain_answer"
	OpLessons = "generate_lessons"
)

// GuardConfig bounds calls to the underlying generator.
type GuardConfig struct {
	// Timeout applies when the caller attached no bound via WithCallTimeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// RatePerSecond and Burst configure the token bucket shared by all
	// calls. RatePerSecond <= 0 disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`

	// The breaker opens after BreakerFailures consecutive failures and
	// tries again after BreakerOpenFor.
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
}

// DefaultGuardConfig returns sensible defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:         8 * time.Second,
		RatePerSecond:   5,
		Burst:           10,
		BreakerFailures: 5,
		BreakerOpenFor:  30 * time.Second,
	}
}

// Guard is a ContentGenerator decorator that applies a timeout, a rate
// limit and a circuit breaker to every call, and maps every failure to
// *model.ErrGeneratorUnavailable.
type Guard struct {
	inner   ContentGenerator
	cfg     GuardConfig
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGuard wraps inner.
func NewGuard(inner ContentGenerator, cfg GuardConfig, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{inner: inner, cfg: cfg, logger: logger}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "content-generator",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("generator breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return g
}

// State reports the breaker state.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// guarded runs fn under the guard's policies.
func guarded[T any](g *Guard, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	timeout := g.cfg.Timeout
	if d, ok := CallTimeoutFrom(ctx); ok {
		timeout = d
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.GeneratorLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.GeneratorCalls.WithLabelValues(op, "rate_limited").Inc()
			return zero, &model.ErrGeneratorUnavailable{Op: op, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		status := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			status = "breaker_open"
		case errors.Is(err, context.DeadlineExceeded):
			status = "timeout"
		}
		metrics.GeneratorCalls.WithLabelValues(op, status).Inc()
		g.logger.Warn("content generator call failed",
			zap.String("op", op),
			zap.String("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		var unavailable *model.ErrGeneratorUnavailable
		if errors.As(err, &unavailable) {
			return zero, err
		}
		return zero, &model.ErrGeneratorUnavailable{Op: op, Err: err}
	}

	metrics.GeneratorCalls.WithLabelValues(op, "ok").Inc()
	return out.(T), nil
}

func (g *Guard) GeneratePlan(ctx context.Context, req PlanRequest) (GeneratedPlan, error) {
	return guarded(g, ctx, OpPlan, func(ctx context.Context) (GeneratedPlan, error) {
		return g.inner.GeneratePlan(ctx, req)
	})
}

func (g *Guard) ReviseModules(ctx context.Context, req ReviseRequest) ([]Revision, error) {
	return guarded(g, ctx, OpRevise, func(ctx context.Context) ([]Revision, error) {
		return g.inner.ReviseModules(ctx, req)
	})
}

func (g *Guard) GenerateItem(ctx context.Context, req ItemRequest) (model.AssessmentItem, error) {
	return guarded(g, ctx, OpItem, func(ctx context.Context) (model.AssessmentItem, error) {
		return g.inner.GenerateItem(ctx, req)
	})
}

func (g *Guard) JudgeOpenAnswer(ctx context.Context, req JudgeRequest) (Verdict, error) {
	return guarded(g, ctx, OpJudge, func(ctx context.Context) (Verdict, error) {
		return g.inner.JudgeOpenAnswer(ctx, req)
	})
}

func (g *Guard) ExplainAnswer(ctx context.Context, req ExplainRequest) (string, error) {
	return guarded(g, ctx, OpExplain, func(ctx context.Context) (string, error) {
		return g.inner.ExplainAnswer(ctx, req)
	})
}

func (g *Guard) GenerateLessons(ctx context.Context, req LessonRequest) ([]model.Lesson, error) {
	return guarded(g, ctx, OpLessons, func(ctx context.Context) ([]model.Lesson, error) {
		return g.inner.GenerateLessons(ctx, req)
	})
}
