package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/mastery"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/store"
)

func ptr[T any](v T) *T { return &v }

func testCatalog() *catalog.Catalog {
	entry := func(id string, skill model.SkillID, d float64) model.ContentEntry {
		return model.ContentEntry{
			ID:               model.ContentID(id),
			SkillRefs:        []model.SkillRef{{SkillID: skill, Weight: 1}},
			Difficulty:       d,
			EstimatedMinutes: 20,
			Type:             model.ContentLesson,
		}
	}
	return catalog.MustNew([]model.ContentEntry{
		entry("js-1", "js", 0.2),
		entry("js-2", "js", 0.5),
		entry("react-1", "react", 0.4),
		entry("react-2", "react", 0.7),
	}, []model.Skill{
		{ID: "js", Name: "JavaScript"},
		{ID: "react", Name: "React", Prerequisites: []model.SkillID{"js"}},
	})
}

func testItem() model.AssessmentItem {
	return model.AssessmentItem{
		ID:         "q1",
		Stem:       "Which hook manages local state?",
		Difficulty: 0.6,
		SkillRefs:  []model.SkillRef{{SkillID: "react", Weight: 1}},
		Options: []model.Option{
			{ID: "a", Statement: "useEffect"},
			{ID: "b", Statement: "useState", IsCorrect: true},
		},
	}
}

func newEngine(t *testing.T, gen generator.ContentGenerator) (*Engine, store.DecisionRepo) {
	t.Helper()
	s, err := store.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts := []Option{WithAudit(s.DecisionRepo())}
	if gen != nil {
		opts = append(opts, WithGenerator(gen))
	}
	return New(DefaultConfig(), opts...), s.DecisionRepo()
}

func decisions(t *testing.T, repo store.DecisionRepo, op string) []store.Decision {
	t.Helper()
	out, err := repo.QueryDecisions(context.Background(), store.DecisionQuery{Op: op})
	require.NoError(t, err)
	return out
}

func TestGeneratePlan_AuditsHeuristicPlan(t *testing.T) {
	e, audit := newEngine(t, nil)

	res, err := e.GeneratePlan(context.Background(), PlanRequest{
		Profile: model.Profile{UserID: "u1"},
		Goals:   []model.Goal{{Title: "Frontend", TargetSkills: []model.SkillID{"react", "js"}}},
		Catalog: testCatalog(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StrategyHeuristic, res.StrategyUsed)
	assert.Equal(t, 1, res.Plan.Version)

	recs := decisions(t, audit, OpGeneratePlan)
	require.Len(t, recs, 1)
	assert.Equal(t, "ok", recs[0].Outcome)
	assert.Equal(t, res.Plan.PlanID, recs[0].PlanID)
	assert.Equal(t, "u1", recs[0].UserID)
	assert.Equal(t, "2 modules, 4 activities", recs[0].Summary)
}

func TestGeneratePlan_InsufficientCatalogIsAudited(t *testing.T) {
	e, audit := newEngine(t, nil)

	_, err := e.GeneratePlan(context.Background(), PlanRequest{
		Profile: model.Profile{UserID: "u1"},
		Goals:   []model.Goal{{TargetSkills: []model.SkillID{"rust"}}},
		Catalog: testCatalog(),
	})
	var insufficient *model.ErrInsufficientCatalog
	require.ErrorAs(t, err, &insufficient)

	recs := decisions(t, audit, OpGeneratePlan)
	require.Len(t, recs, 1)
	assert.Equal(t, model.KindInsufficientCatalog, recs[0].Outcome)
}

func TestGeneratePlan_PassesCallTimeoutAndFallsBack(t *testing.T) {
	var seen time.Duration
	stub := &generator.Stub{PlanFunc: func(ctx context.Context, _ generator.PlanRequest) (generator.GeneratedPlan, error) {
		seen, _ = generator.CallTimeoutFrom(ctx)
		return generator.GeneratedPlan{}, &model.ErrGeneratorUnavailable{Op: generator.OpPlan, Err: context.DeadlineExceeded}
	}}
	e, audit := newEngine(t, stub)

	res, err := e.GeneratePlan(context.Background(), PlanRequest{
		CallOptions: CallOptions{Strategy: model.StrategyGenerative, Timeout: 1500 * time.Millisecond},
		Profile:     model.Profile{UserID: "u1"},
		Goals:       []model.Goal{{TargetSkills: []model.SkillID{"js"}}},
		Catalog:     testCatalog(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, seen)
	assert.True(t, res.FellBack)
	assert.Equal(t, model.StrategyHeuristic, res.StrategyUsed)

	recs := decisions(t, audit, OpGeneratePlan)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].FellBack)
	assert.Equal(t, model.StrategyHeuristic, recs[0].Strategy)
}

func TestReplan_AuditsChangeSummary(t *testing.T) {
	e, audit := newEngine(t, nil)
	plan := model.LearningPlan{
		PlanID: "p1", UserID: "u1", Version: 2,
		Modules: []model.Module{{
			ID: "m1", Position: 1, Status: model.StatusInProgress, TargetSkills: []model.SkillID{"react"},
			Activities: []model.Activity{{ID: "a1", ContentRef: "react-2", Status: model.StatusPending}},
		}},
	}
	var events []model.Event
	for i := range 3 {
		events = append(events, model.MasteryEvent("u1", model.MasteryDelta{
			SkillID: "react", Before: 0.6 - 0.1*float64(i), After: 0.5 - 0.1*float64(i),
			At: time.Date(2026, 5, 1, 9, i, 0, 0, time.UTC),
		}))
	}

	res, err := e.Replan(context.Background(), ReplanRequest{Plan: plan, RecentEvents: events, Catalog: testCatalog()})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Plan.Version)
	assert.True(t, res.Changes.Structural())

	recs := decisions(t, audit, OpReplan)
	require.Len(t, recs, 1)
	assert.Equal(t, "p1", recs[0].PlanID)
	assert.Equal(t, 3, recs[0].PlanVersion)
	assert.Equal(t, res.Changes.String(), recs[0].Summary)
}

func TestNew_NilLoggerFallsBackToNop(t *testing.T) {
	var e *Engine
	require.NotPanics(t, func() { e = New(DefaultConfig(), WithLogger(nil)) })

	sel, err := e.NextItem(context.Background(), NextItemRequest{
		Domain:         "frontend",
		MasteryBySkill: map[model.SkillID]float64{"react": 0.6},
		Pool:           []model.AssessmentItem{testItem()},
	})
	require.NoError(t, err)
	assert.Equal(t, "q1", sel.Item.ID)
}

func TestNextItem_EmptyPoolHeuristicFails(t *testing.T) {
	e, audit := newEngine(t, nil)

	_, err := e.NextItem(context.Background(), NextItemRequest{UserID: "u1", Domain: "frontend"})
	assert.Equal(t, model.KindNoCandidateItem, model.Kind(err))
	assert.Equal(t, model.KindNoCandidateItem, decisions(t, audit, OpNextItem)[0].Outcome)
}

func TestNextItem_PicksFromPool(t *testing.T) {
	e, _ := newEngine(t, nil)

	sel, err := e.NextItem(context.Background(), NextItemRequest{
		Domain:         "frontend",
		MasteryBySkill: map[model.SkillID]float64{"react": 0.6},
		Pool:           []model.AssessmentItem{testItem()},
	})
	require.NoError(t, err)
	assert.Equal(t, "q1", sel.Item.ID)
}

func TestGrade_CorrectAnswerUpdatesMastery(t *testing.T) {
	e, audit := newEngine(t, nil)

	res, err := e.Grade(context.Background(), GradeRequest{
		UserID:      "u1",
		Item:        testItem(),
		Response:    model.Response{ItemID: "q1", SelectedOptionID: ptr("b"), ResponseTimeMs: 8000},
		SkillStates: []model.SkillState{},
		Catalog:     testCatalog(),
	})
	require.NoError(t, err)

	assert.True(t, res.Graded.IsCorrect)
	assert.True(t, res.Feedback.IsCorrect)
	require.NotNil(t, res.Mastery)
	require.Len(t, res.Mastery.States, 1)
	assert.InDelta(t, 0.7, res.Mastery.States[0].Mastery, 1e-9)
	assert.Equal(t, 1, res.Mastery.States[0].Attempts)
	assert.Equal(t, []mastery.Transition{{SkillID: "react", From: mastery.BandNew, To: mastery.BandProficient}},
		res.Mastery.Transitions)

	require.Len(t, res.Events, 2)
	assert.Equal(t, model.EventItemAnswered, res.Events[0].Type)
	assert.Equal(t, model.EventMasteryUpdated, res.Events[1].Type)
	assert.Equal(t, "u1", res.Events[1].UserID)
	assert.NotEmpty(t, res.Events[1].ID)

	recs := decisions(t, audit, OpGrade)
	require.Len(t, recs, 1)
	assert.Equal(t, "item q1: correct (score 1.00)", recs[0].Summary)
}

func TestGrade_WithoutStatesSkipsMastery(t *testing.T) {
	e, _ := newEngine(t, nil)

	res, err := e.Grade(context.Background(), GradeRequest{
		Item:     testItem(),
		Response: model.Response{ItemID: "q1", SelectedOptionID: ptr("a"), ResponseTimeMs: 500},
		Catalog:  testCatalog(),
	})
	require.NoError(t, err)
	assert.False(t, res.Graded.IsCorrect)
	assert.Equal(t, model.CategorySpeedRush, res.Feedback.Category)
	assert.Nil(t, res.Mastery)
	assert.Len(t, res.Events, 1)
}

func TestGrade_GenerativeJudgeFailureIsPending(t *testing.T) {
	stub := &generator.Stub{}
	e, _ := newEngine(t, stub)
	item := model.AssessmentItem{
		ID: "open", Stem: "Explain closures.", ExpectsOpenAnswer: true,
		SkillRefs: []model.SkillRef{{SkillID: "js", Weight: 1}},
	}

	res, err := e.Grade(context.Background(), GradeRequest{
		CallOptions: CallOptions{Strategy: model.StrategyGenerative},
		Item:        item,
		Response:    model.Response{ItemID: "open", OpenAnswerText: ptr("A function with its scope.")},
		SkillStates: []model.SkillState{{SkillID: "js", Mastery: 0.4, Attempts: 3}},
	})
	require.NoError(t, err)
	assert.True(t, res.Graded.Pending())
	assert.True(t, res.FellBack)
	require.NotNil(t, res.Mastery)
	assert.Empty(t, res.Mastery.Deltas, "pending responses carry no evidence")
	assert.Equal(t, 0.4, res.Mastery.States[0].Mastery)
}

func TestUpdateMastery_FoldsInOrder(t *testing.T) {
	e, _ := newEngine(t, nil)
	graded := func(id string, ok bool) model.GradedResponse {
		score := 0.0
		if ok {
			score = 1
		}
		return model.GradedResponse{Response: model.Response{ItemID: id}, IsCorrect: ok, Score: score, Status: model.GradeGraded}
	}

	res, err := e.UpdateMastery(context.Background(), MasteryRequest{
		UserID: "u1",
		Graded: []model.GradedResponse{graded("q1", true), graded("q2", true), graded("q1", false)},
		SkillRefs: map[string][]model.SkillRef{
			"q1": {{SkillID: "js", Weight: 1}},
			"q2": {{SkillID: "js", Weight: 0.5}, {SkillID: "react", Weight: 1}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, res.Deltas, 4)
	assert.Len(t, res.Events, 4)
	require.Len(t, res.States, 2)
	assert.Equal(t, model.SkillID("js"), res.States[0].SkillID)
	assert.Equal(t, 3, res.States[0].Attempts)
	for _, d := range res.Deltas {
		assert.GreaterOrEqual(t, d.After, 0.0)
		assert.LessOrEqual(t, d.After, 1.0)
	}
}

func TestUpdateMastery_UnknownItem(t *testing.T) {
	e, _ := newEngine(t, nil)

	_, err := e.UpdateMastery(context.Background(), MasteryRequest{
		Graded: []model.GradedResponse{{Response: model.Response{ItemID: "ghost"}, Status: model.GradeGraded}},
	})
	var invalid *model.ErrInvalidReference
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "item", invalid.Kind)
}

func TestGenerateLessons(t *testing.T) {
	t.Run("no generator", func(t *testing.T) {
		e, _ := newEngine(t, nil)
		_, err := e.GenerateLessons(context.Background(), LessonsRequest{Domain: "react", N: 2})
		assert.True(t, model.IsGeneratorUnavailable(err))
	})

	t.Run("default locale", func(t *testing.T) {
		var got generator.LessonRequest
		stub := &generator.Stub{LessonsFunc: func(_ context.Context, req generator.LessonRequest) ([]model.Lesson, error) {
			got = req
			return []model.Lesson{{Title: "Hooks"}}, nil
		}}
		e, audit := newEngine(t, stub)

		lessons, err := e.GenerateLessons(context.Background(), LessonsRequest{Domain: "react", N: 1})
		require.NoError(t, err)
		assert.Len(t, lessons, 1)
		assert.Equal(t, "es-ES", got.Locale)
		assert.Equal(t, model.StrategyGenerative, decisions(t, audit, OpGenerateLessons)[0].Strategy)
	})

	t.Run("plain failure is wrapped", func(t *testing.T) {
		stub := &generator.Stub{LessonsFunc: func(context.Context, generator.LessonRequest) ([]model.Lesson, error) {
			return nil, errors.New("boom")
		}}
		e, _ := newEngine(t, stub)
		_, err := e.GenerateLessons(context.Background(), LessonsRequest{Domain: "react", N: 1})
		assert.Equal(t, model.KindGeneratorUnavailable, model.Kind(err))
	})
}
