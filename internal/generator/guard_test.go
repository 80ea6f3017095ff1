package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/learnsmart/tutor/internal/model"
)

func testGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:         50 * time.Millisecond,
		BreakerFailures: 2,
		BreakerOpenFor:  time.Minute,
	}
}

func TestGuard_TimesOutSlowCalls(t *testing.T) {
	stub := &Stub{ExplainFunc: func(ctx context.Context, _ ExplainRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	g := NewGuard(stub, testGuardConfig(), nil)

	start := time.Now()
	_, err := g.ExplainAnswer(context.Background(), ExplainRequest{})

	var unavailable *model.ErrGeneratorUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrGeneratorUnavailable, got %T (%v)", err, err)
	}
	if unavailable.Op != OpExplain {
		t.Errorf("Op = %q, want %q", unavailable.Op, OpExplain)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call took %v, timeout not applied", elapsed)
	}
}

func TestGuard_CallerTimeoutWins(t *testing.T) {
	stub := &Stub{JudgeFunc: func(ctx context.Context, _ JudgeRequest) (Verdict, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Error("expected a deadline")
		}
		if time.Until(deadline) > 2*time.Second {
			t.Errorf("deadline too far: %v", time.Until(deadline))
		}
		return Verdict{IsCorrect: true}, nil
	}}
	cfg := testGuardConfig()
	cfg.Timeout = time.Hour
	g := NewGuard(stub, cfg, nil)

	ctx := WithCallTimeout(context.Background(), time.Second)
	v, err := g.JudgeOpenAnswer(ctx, JudgeRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsCorrect {
		t.Error("verdict not passed through")
	}
}

func TestGuard_BreakerOpensAfterFailures(t *testing.T) {
	boom := errors.New("upstream 500")
	stub := &Stub{ItemFunc: func(context.Context, ItemRequest) (model.AssessmentItem, error) {
		return model.AssessmentItem{}, boom
	}}
	g := NewGuard(stub, testGuardConfig(), nil)

	for range 2 {
		_, err := g.GenerateItem(context.Background(), ItemRequest{})
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped upstream error, got %v", err)
		}
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", g.State())
	}

	_, err := g.GenerateItem(context.Background(), ItemRequest{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open-state error, got %v", err)
	}
	if !model.IsGeneratorUnavailable(err) {
		t.Fatalf("open breaker must surface as unavailable, got %T", err)
	}
	if n := stub.Calls(OpItem); n != 2 {
		t.Errorf("inner calls = %d, want 2 (third short-circuited)", n)
	}
}

func TestGuard_DoesNotDoubleWrap(t *testing.T) {
	g := NewGuard(&Stub{}, testGuardConfig(), nil)

	_, err := g.GenerateLessons(context.Background(), LessonRequest{})
	var unavailable *model.ErrGeneratorUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrGeneratorUnavailable, got %T", err)
	}
	var inner *model.ErrGeneratorUnavailable
	if errors.As(unavailable.Err, &inner) {
		t.Fatalf("error wrapped twice: %v", err)
	}
}

func TestGuard_PassesThroughSuccess(t *testing.T) {
	stub := &Stub{PlanFunc: func(context.Context, PlanRequest) (GeneratedPlan, error) {
		return GeneratedPlan{Rationale: "ok"}, nil
	}}
	g := NewGuard(stub, DefaultGuardConfig(), nil)

	plan, err := g.GeneratePlan(context.Background(), PlanRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Rationale != "ok" {
		t.Errorf("Rationale = %q", plan.Rationale)
	}
	if g.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v", g.State())
	}
}
