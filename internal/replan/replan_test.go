package replan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

func entry(id string, skill model.SkillID, difficulty float64) model.ContentEntry {
	return model.ContentEntry{
		ID:               model.ContentID(id),
		SkillRefs:        []model.SkillRef{{SkillID: skill, Weight: 1}},
		Difficulty:       difficulty,
		EstimatedMinutes: 30,
		Type:             model.ContentLesson,
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.MustNew([]model.ContentEntry{
		entry("r0", "react", 0.1),
		entry("r1", "react", 0.3),
		entry("r2", "react", 0.5),
		entry("r3", "react", 0.7),
		entry("r4", "react", 0.9),
		entry("c1", "css", 0.2),
		entry("c2", "css", 0.4),
	}, []model.Skill{{ID: "react", Name: "React"}, {ID: "css", Name: "CSS"}})
}

func module(id string, pos int, status model.Status, skill model.SkillID, refs ...string) model.Module {
	m := model.Module{ID: id, Title: id, Position: pos, Status: status, TargetSkills: []model.SkillID{skill}}
	actStatus := model.StatusPending
	if status == model.StatusCompleted {
		actStatus = model.StatusCompleted
	}
	for _, ref := range refs {
		m.Activities = append(m.Activities, model.Activity{
			ID: id + "-" + ref, ContentRef: model.ContentID(ref), Status: actStatus, EstimatedMinutes: 30,
		})
	}
	return m
}

// basePlan: m1 completed (react), m2 in progress (react), m3 pending (css).
func basePlan() model.LearningPlan {
	return model.LearningPlan{
		PlanID:  "plan-1",
		UserID:  "u1",
		Version: 4,
		Modules: []model.Module{
			module("m1", 1, model.StatusCompleted, "react", "r1"),
			module("m2", 2, model.StatusInProgress, "react", "r2"),
			module("m3", 3, model.StatusPending, "css", "c2"),
		},
	}
}

func trendEvents(skill model.SkillID, start, step float64, n int) []model.Event {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var out []model.Event
	m := start
	for i := range n {
		out = append(out, model.MasteryEvent("u1", model.MasteryDelta{
			SkillID: skill, Before: m, After: m + step, At: base.Add(time.Duration(i) * time.Minute),
		}))
		m += step
	}
	return out
}

func newReplanner(gen generator.ContentGenerator) *Replanner {
	r := New(gen, nil, nil)
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
	return r
}

func ids(plan model.LearningPlan) []string {
	out := make([]string, len(plan.Modules))
	for i, m := range plan.Modules {
		out[i] = m.ID
	}
	return out
}

func positions(plan model.LearningPlan) []int {
	out := make([]int, len(plan.Modules))
	for i, m := range plan.Modules {
		out[i] = m.Position
	}
	return out
}

func TestReplan_DecliningInsertsRemediationModule(t *testing.T) {
	r := newReplanner(nil)
	in := basePlan()

	res, err := r.Replan(context.Background(), Request{
		Plan:         in,
		RecentEvents: trendEvents("react", 0.6, -0.1, 3),
		SkillStates:  []model.SkillState{{SkillID: "react", Mastery: 0.3}},
		Catalog:      testCatalog(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "new-1", "m3"}, ids(res.Plan))
	assert.Equal(t, []int{1, 2, 3, 4}, positions(res.Plan))
	remedial := res.Plan.Modules[2]
	assert.Equal(t, "Review: React", remedial.Title)
	assert.Equal(t, model.StatusPending, remedial.Status)
	require.Len(t, remedial.Activities, 1)
	assert.Equal(t, model.ContentID("r1"), remedial.Activities[0].ContentRef, "closest easier entry")

	require.Len(t, res.Changes, 2)
	assert.Equal(t, model.Change{ModuleID: "new-1", Action: model.ActionRemediationAdded,
		Detail: "r1 (difficulty 0.30) for react, after m2"}, res.Changes[0])
	assert.Equal(t, model.Change{ModuleID: "m3", Action: model.ActionNoChange, Detail: "no recent evidence"}, res.Changes[1])

	assert.Equal(t, "plan-1", res.Plan.PlanID)
	assert.Equal(t, 5, res.Plan.Version)
	assert.Equal(t, model.StrategyHeuristic, res.StrategyUsed)

	// Input untouched.
	assert.Equal(t, basePlan(), in)
}

func TestReplan_DecliningBeforeCompletedModuleAppends(t *testing.T) {
	r := newReplanner(nil)
	plan := model.LearningPlan{
		PlanID: "p", UserID: "u1", Version: 1,
		Modules: []model.Module{
			module("a", 1, model.StatusInProgress, "react", "r2"),
			module("b", 2, model.StatusCompleted, "css", "c1"),
		},
	}

	res, err := r.Replan(context.Background(), Request{
		Plan:         plan,
		RecentEvents: trendEvents("react", 0.6, -0.1, 3),
		Catalog:      testCatalog(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(res.Plan))
	assert.Equal(t, plan.Modules[1], res.Plan.Modules[1])
	require.Len(t, res.Plan.Modules[0].Activities, 2)
	assert.Equal(t, model.ContentID("r1"), res.Plan.Modules[0].Activities[1].ContentRef)
	assert.Equal(t, model.ActionRemediationAdded, res.Changes[0].Action)
	assert.Equal(t, "a", res.Changes[0].ModuleID)
}

func TestReplan_RemediationUnavailable(t *testing.T) {
	r := newReplanner(nil)
	plan := model.LearningPlan{
		PlanID: "p", UserID: "u1",
		Modules: []model.Module{module("a", 1, model.StatusInProgress, "react", "r0")},
	}

	res, err := r.Replan(context.Background(), Request{
		Plan:         plan,
		RecentEvents: trendEvents("react", 0.6, -0.1, 3),
		Catalog:      testCatalog(),
	})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, model.ActionRemediationUnavailable, res.Changes[0].Action)
	assert.False(t, res.Changes.Structural())
	assert.Len(t, res.Plan.Modules, 1)
}

func TestReplan_ImprovingSkipsPendingAndChallengesNext(t *testing.T) {
	r := newReplanner(nil)
	plan := model.LearningPlan{
		PlanID: "p", UserID: "u1",
		Modules: []model.Module{
			module("a", 1, model.StatusPending, "react", "r1"),
			module("b", 2, model.StatusPending, "css", "c1"),
		},
	}

	res, err := r.Replan(context.Background(), Request{
		Plan:         plan,
		RecentEvents: trendEvents("react", 0.4, 0.1, 3),
		Catalog:      testCatalog(),
	})
	require.NoError(t, err)

	a, b := res.Plan.Modules[0], res.Plan.Modules[1]
	assert.Equal(t, model.StatusSkipped, a.Status)
	assert.Equal(t, model.StatusSkipped, a.Activities[0].Status)
	require.Len(t, b.Activities, 2)
	assert.Equal(t, model.ContentID("r2"), b.Activities[1].ContentRef, "next harder react entry")

	actions := []model.ChangeAction{res.Changes[0].Action, res.Changes[1].Action}
	assert.Equal(t, []model.ChangeAction{model.ActionSkipped, model.ActionChallengeAdded}, actions)
	assert.Equal(t, "b", res.Changes[1].ModuleID)
}

func TestReplan_ConsecutiveImprovingModulesChallengeBeyondSkips(t *testing.T) {
	r := newReplanner(nil)
	plan := model.LearningPlan{
		PlanID: "p", UserID: "u1",
		Modules: []model.Module{
			module("a", 1, model.StatusPending, "react", "r1"),
			module("b", 2, model.StatusPending, "react", "r2"),
			module("c", 3, model.StatusPending, "css", "c1"),
		},
	}

	res, err := r.Replan(context.Background(), Request{
		Plan:         plan,
		RecentEvents: trendEvents("react", 0.4, 0.1, 3),
		Catalog:      testCatalog(),
	})
	require.NoError(t, err)

	a, b, c := res.Plan.Modules[0], res.Plan.Modules[1], res.Plan.Modules[2]
	assert.Equal(t, model.StatusSkipped, a.Status)
	assert.Equal(t, model.StatusSkipped, b.Status)
	require.Len(t, b.Activities, 1, "nothing is added to a module skipped in the same pass")
	assert.Equal(t, model.StatusPending, c.Status)

	var refs []model.ContentID
	for _, act := range c.Activities {
		refs = append(refs, act.ContentRef)
		assert.Equal(t, model.StatusPending, act.Status)
	}
	assert.Equal(t, []model.ContentID{"c1", "r3", "r4"}, refs)

	for _, ch := range res.Changes {
		if ch.Action == model.ActionChallengeAdded {
			assert.Equal(t, "c", ch.ModuleID)
		}
	}
}

func TestReplan_ImprovingInProgressIsNotSkipped(t *testing.T) {
	r := newReplanner(nil)

	res, err := r.Replan(context.Background(), Request{
		Plan:         basePlan(),
		RecentEvents: trendEvents("react", 0.4, 0.1, 3),
		Catalog:      testCatalog(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, res.Plan.Modules[1].Status)
	m3 := res.Plan.Modules[2]
	require.Len(t, m3.Activities, 2)
	assert.Equal(t, model.ContentID("r3"), m3.Activities[1].ContentRef)
}

func TestReplan_StagnantIsNoteOnly(t *testing.T) {
	r := newReplanner(nil)
	in := basePlan()

	res, err := r.Replan(context.Background(), Request{
		Plan:         in,
		RecentEvents: trendEvents("react", 0.5, 0.01, 3),
		Catalog:      testCatalog(),
	})
	require.NoError(t, err)
	assert.False(t, res.Changes.Structural())
	assert.Equal(t, in.Modules, res.Plan.Modules)
	assert.Equal(t, "stagnant (net +0.03)", res.Changes[0].Detail)
}

func TestReplan_IgnoresOtherUsersEvents(t *testing.T) {
	r := newReplanner(nil)
	events := trendEvents("react", 0.6, -0.1, 3)
	for i := range events {
		events[i].UserID = "someone-else"
	}

	res, err := r.Replan(context.Background(), Request{Plan: basePlan(), RecentEvents: events, Catalog: testCatalog()})
	require.NoError(t, err)
	assert.False(t, res.Changes.Structural())
}

func TestReplan_CompletedModulesNeverChange(t *testing.T) {
	plans := []model.LearningPlan{
		basePlan(),
		{
			PlanID: "p2", UserID: "u1",
			Modules: []model.Module{
				module("a", 1, model.StatusPending, "react", "r2"),
				module("done", 2, model.StatusCompleted, "react", "r3"),
				module("b", 3, model.StatusPending, "react", "r4"),
				module("done2", 4, model.StatusCompleted, "css", "c1"),
				module("c", 5, model.StatusInProgress, "css", "c2"),
			},
		},
	}
	evidence := [][]model.Event{
		trendEvents("react", 0.6, -0.1, 5),
		trendEvents("react", 0.2, 0.1, 5),
		append(trendEvents("css", 0.7, -0.15, 3), trendEvents("react", 0.3, 0.1, 3)...),
		nil,
	}

	for pi, plan := range plans {
		for ei, events := range evidence {
			t.Run(fmt.Sprintf("plan%d/events%d", pi, ei), func(t *testing.T) {
				res, err := newReplanner(nil).Replan(context.Background(), Request{
					Plan: plan, RecentEvents: events, Catalog: testCatalog(),
				})
				require.NoError(t, err)
				for i, m := range plan.Modules {
					if m.Status != model.StatusCompleted {
						continue
					}
					require.Greater(t, len(res.Plan.Modules), i)
					assert.Equal(t, m, res.Plan.Modules[i], "completed module %s changed or moved", m.ID)
				}
				for _, ref := range res.Plan.ContentRefs() {
					assert.True(t, testCatalog().Has(ref))
				}
			})
		}
	}
}

func TestReplan_GenerativeAppliesRevisions(t *testing.T) {
	stub := &generator.Stub{ReviseFunc: func(_ context.Context, req generator.ReviseRequest) ([]generator.Revision, error) {
		require.Len(t, req.Trends, 2)
		return []generator.Revision{
			{Action: generator.ReviseChallenge, ModuleID: "m2", ContentRef: "r4", Note: "learner is flying"},
			{Action: generator.ReviseReorder, ModuleID: "m3", BeforeModuleID: "m2"},
			{Action: generator.ReviseNote, ModuleID: "m2", Note: "watch closely"},
		}, nil
	}}
	r := newReplanner(stub)

	res, err := r.Replan(context.Background(), Request{Plan: basePlan(), Catalog: testCatalog(), Strategy: model.StrategyGenerative})
	require.NoError(t, err)
	assert.Equal(t, model.StrategyGenerative, res.StrategyUsed)
	assert.Equal(t, []string{"m1", "m3", "m2"}, ids(res.Plan))
	assert.Equal(t, []int{1, 2, 3}, positions(res.Plan))
	assert.Equal(t, model.ContentID("r4"), res.Plan.Modules[2].Activities[1].ContentRef)
	assert.Equal(t, "r4: learner is flying", res.Changes[0].Detail)
	assert.Equal(t, model.ActionReordered, res.Changes[1].Action)
	assert.Equal(t, model.ActionNoChange, res.Changes[2].Action)
}

func TestReplan_GenerativeTouchingCompletedFallsBack(t *testing.T) {
	stub := &generator.Stub{ReviseFunc: func(context.Context, generator.ReviseRequest) ([]generator.Revision, error) {
		return []generator.Revision{{Action: generator.ReviseSkip, ModuleID: "m1"}}, nil
	}}
	r := newReplanner(stub)

	res, err := r.Replan(context.Background(), Request{
		Plan:         basePlan(),
		RecentEvents: trendEvents("react", 0.6, -0.1, 3),
		Catalog:      testCatalog(),
		Strategy:     model.StrategyGenerative,
	})
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.Equal(t, model.StrategyHeuristic, res.StrategyUsed)
	assert.Equal(t, model.StatusCompleted, res.Plan.Modules[0].Status)
	assert.Equal(t, model.ActionRemediationAdded, res.Changes[0].Action)
}

func TestReplan_GenerativeUnavailableFallsBack(t *testing.T) {
	stub := &generator.Stub{ReviseFunc: func(context.Context, generator.ReviseRequest) ([]generator.Revision, error) {
		return nil, &model.ErrGeneratorUnavailable{Op: generator.OpRevise, Err: errors.New("breaker open")}
	}}
	res, err := newReplanner(stub).Replan(context.Background(), Request{
		Plan: basePlan(), Catalog: testCatalog(), Strategy: model.StrategyGenerative,
	})
	require.NoError(t, err)
	assert.True(t, res.FellBack)
}

func TestReplan_GenerativeUnknownContentIsFatal(t *testing.T) {
	stub := &generator.Stub{ReviseFunc: func(context.Context, generator.ReviseRequest) ([]generator.Revision, error) {
		return []generator.Revision{{Action: generator.ReviseRemediate, ModuleID: "m2", ContentRef: "nope"}}, nil
	}}
	_, err := newReplanner(stub).Replan(context.Background(), Request{
		Plan: basePlan(), Catalog: testCatalog(), Strategy: model.StrategyGenerative,
	})
	var invalid *model.ErrInvalidReference
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "content", invalid.Kind)
}

func TestReplan_GenerativeUnknownModuleIsFatal(t *testing.T) {
	stub := &generator.Stub{ReviseFunc: func(context.Context, generator.ReviseRequest) ([]generator.Revision, error) {
		return []generator.Revision{{Action: generator.ReviseSkip, ModuleID: "ghost"}}, nil
	}}
	_, err := newReplanner(stub).Replan(context.Background(), Request{
		Plan: basePlan(), Catalog: testCatalog(), Strategy: model.StrategyGenerative,
	})
	assert.Equal(t, model.KindInvalidReference, model.Kind(err))
}
