package generator

import (
	"context"
	"errors"
	"sync"

	"github.com/learnsmart/tutor/internal/model"
)

var errNotConfigured = errors.New("stub method not configured")

// Stub is a deterministic ContentGenerator for tests and offline runs.
// Each method delegates to its func field; a nil field fails with
// *model.ErrGeneratorUnavailable. Calls are counted per method.
type Stub struct {
	PlanFunc    func(context.Context, PlanRequest) (GeneratedPlan, error)
	ReviseFunc  func(context.Context, ReviseRequest) ([]Revision, error)
	ItemFunc    func(context.Context, ItemRequest) (model.AssessmentItem, error)
	JudgeFunc   func(context.Context, JudgeRequest) (Verdict, error)
	ExplainFunc func(context.Context, ExplainRequest) (string, error)
	LessonsFunc func(context.Context, LessonRequest) ([]model.Lesson, error)

	mu    sync.Mutex
	calls map[string]int
}

func (s *Stub) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
}

// Calls returns how many times method op was invoked.
func (s *Stub) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func unavailable(op string) error {
	return &model.ErrGeneratorUnavailable{Op: op, Err: errNotConfigured}
}

func (s *Stub) GeneratePlan(ctx context.Context, req PlanRequest) (GeneratedPlan, error) {
	s.record(OpPlan)
	if s.PlanFunc == nil {
		return GeneratedPlan{}, unavailable(OpPlan)
	}
	return s.PlanFunc(ctx, req)
}

func (s *Stub) ReviseModules(ctx context.Context, req ReviseRequest) ([]Revision, error) {
	s.record(OpRevise)
	if s.ReviseFunc == nil {
		return nil, unavailable(OpRevise)
	}
	return s.ReviseFunc(ctx, req)
}

func (s *Stub) GenerateItem(ctx context.Context, req ItemRequest) (model.AssessmentItem, error) {
	s.record(OpItem)
	if s.ItemFunc == nil {
		return model.AssessmentItem{}, unavailable(OpItem)
	}
	return s.ItemFunc(ctx, req)
}

func (s *Stub) JudgeOpenAnswer(ctx context.Context, req JudgeRequest) (Verdict, error) {
	s.record(OpJudge)
	if s.JudgeFunc == nil {
		return Verdict{}, unavailable(OpJudge)
	}
	return s.JudgeFunc(ctx, req)
}

func (s *Stub) ExplainAnswer(ctx context.Context, req ExplainRequest) (string, error) {
	s.record(OpExplain)
	if s.ExplainFunc == nil {
		return "", unavailable(OpExplain)
	}
	return s.ExplainFunc(ctx, req)
}

func (s *Stub) GenerateLessons(ctx context.Context, req LessonRequest) ([]model.Lesson, error) {
	s.record(OpLessons)
	if s.LessonsFunc == nil {
		return nil, unavailable(OpLessons)
	}
	return s.LessonsFunc(ctx, req)
}
