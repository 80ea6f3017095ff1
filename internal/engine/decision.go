package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/metrics"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/store"
	"github.com/learnsmart/tutor/internal/tracing"
)

// decision tracks one engine call from begin to finish.
type decision struct {
	op        string
	requested model.Strategy
	started   time.Time
	span      trace.Span
	record    store.Decision
}

func (d *decision) used(strategy model.Strategy, fellBack bool) {
	if strategy != "" {
		d.record.Strategy = strategy
	}
	d.record.FellBack = d.record.FellBack || fellBack
}

// finish emits metrics, ends the span and appends the audit record. Audit
// failures are logged; they never fail the decision.
func (e *Engine) finish(ctx context.Context, d *decision, err error) {
	elapsed := time.Since(d.started)
	outcome := "ok"
	if err != nil {
		outcome = model.Kind(err)
	}

	metrics.Decisions.WithLabelValues(d.op, string(d.record.Strategy), outcome).Inc()
	metrics.DecisionLatency.WithLabelValues(d.op).Observe(elapsed.Seconds())
	if d.record.FellBack {
		metrics.Fallbacks.WithLabelValues(d.op).Inc()
	}

	d.span.SetAttributes(
		attribute.String("tutor.strategy.used", string(d.record.Strategy)),
		attribute.Bool("tutor.fell_back", d.record.FellBack),
		attribute.String("tutor.outcome", outcome),
	)
	tracing.End(d.span, err)

	fields := []zap.Field{
		zap.String("op", d.op),
		zap.String("strategy", string(d.record.Strategy)),
		zap.Bool("fell_back", d.record.FellBack),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		e.logger.Info("decision failed", append(fields, zap.Error(err))...)
	} else {
		e.logger.Debug("decision", fields...)
	}

	if e.audit == nil {
		return
	}
	d.record.Outcome = outcome
	d.record.LatencyMs = elapsed.Milliseconds()
	d.record.Timestamp = time.Now()
	if err != nil && d.record.Summary == "" {
		d.record.Summary = err.Error()
	}
	// The request context may already be cancelled; the audit write should
	// still land.
	if aerr := e.audit.AppendDecision(context.WithoutCancel(ctx), d.record); aerr != nil {
		e.logger.Warn("audit write failed", zap.String("op", d.op), zap.Error(aerr))
	}
}
