package itemselect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

func mcItem(id string, difficulty float64, skills ...model.SkillID) model.AssessmentItem {
	item := model.AssessmentItem{
		ID:         id,
		Stem:       "question " + id,
		Difficulty: difficulty,
		Options: []model.Option{
			{ID: "o1", Statement: "a", IsCorrect: true},
			{ID: "o2", Statement: "b"},
		},
	}
	for _, s := range skills {
		item.SkillRefs = append(item.SkillRefs, model.SkillRef{SkillID: s, Weight: 1})
	}
	return item
}

func TestSelectNext_PicksClosestDifficulty(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)

	sel, err := s.SelectNext(context.Background(), Request{
		Domain:         "react",
		MasteryBySkill: map[model.SkillID]float64{"react": 0.45},
		Pool: []model.AssessmentItem{
			mcItem("easy", 0.1, "react"),
			mcItem("mid", 0.4, "react"),
			mcItem("hard", 0.9, "react"),
		},
		Strategy: model.StrategyHeuristic,
	})
	require.NoError(t, err)
	assert.Equal(t, "mid", sel.Item.ID)
	assert.Equal(t, "selected: difficulty 0.40 close to mastery 0.45, not recently seen", sel.Rationale)
	assert.Equal(t, model.StrategyHeuristic, sel.StrategyUsed)
	assert.False(t, sel.Generated)
}

func TestSelectNext_UnseenSkillDefaultsToHalf(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)

	sel, err := s.SelectNext(context.Background(), Request{
		Pool: []model.AssessmentItem{
			mcItem("a", 0.2, "css"),
			mcItem("b", 0.5, "css"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "b", sel.Item.ID)
}

func TestSelectNext_TargetIsMeanOverItemSkills(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)
	mastery := map[model.SkillID]float64{"html": 0.2, "css": 0.8}

	sel, err := s.SelectNext(context.Background(), Request{
		MasteryBySkill: mastery,
		Pool: []model.AssessmentItem{
			mcItem("html-only", 0.5, "html"),
			mcItem("both", 0.5, "html", "css"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "both", sel.Item.ID)
}

func TestSelectNext_NeverRepeatsRecentCorrectWhenAlternativeExists(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)
	pool := []model.AssessmentItem{
		mcItem("perfect", 0.5, "js"),
		mcItem("worse", 0.9, "js"),
	}

	sel, err := s.SelectNext(context.Background(), Request{
		MasteryBySkill: map[model.SkillID]float64{"js": 0.5},
		Pool:           pool,
		RecentHistory:  []model.HistoryEntry{{ItemID: "perfect", IsCorrect: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "worse", sel.Item.ID)

	// Outside the window the item is eligible again.
	history := []model.HistoryEntry{{ItemID: "perfect", IsCorrect: true}}
	for range 5 {
		history = append(history, model.HistoryEntry{ItemID: "other", IsCorrect: false})
	}
	sel, err = s.SelectNext(context.Background(), Request{
		MasteryBySkill: map[model.SkillID]float64{"js": 0.5},
		Pool:           pool,
		RecentHistory:  history,
	})
	require.NoError(t, err)
	assert.Equal(t, "perfect", sel.Item.ID)
}

func TestSelectNext_WrongAnswerDoesNotExclude(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)

	sel, err := s.SelectNext(context.Background(), Request{
		MasteryBySkill: map[model.SkillID]float64{"js": 0.5},
		Pool:           []model.AssessmentItem{mcItem("a", 0.5, "js"), mcItem("b", 0.8, "js")},
		RecentHistory:  []model.HistoryEntry{{ItemID: "a", IsCorrect: false}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", sel.Item.ID)
	assert.Contains(t, sel.Rationale, "seen 1 time(s) recently")
}

func TestSelectNext_AllExcludedReturnsBestWithNote(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)

	sel, err := s.SelectNext(context.Background(), Request{
		Pool:          []model.AssessmentItem{mcItem("only", 0.5, "js")},
		RecentHistory: []model.HistoryEntry{{ItemID: "only", IsCorrect: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "only", sel.Item.ID)
	assert.Contains(t, sel.Rationale, "no alternative")
}

func TestSelectNext_TieBreaksByExposureThenPoolOrder(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)
	pool := []model.AssessmentItem{
		mcItem("first", 0.4, "js"),
		mcItem("second", 0.6, "js"),
		mcItem("third", 0.6, "js"),
	}
	mastery := map[model.SkillID]float64{"js": 0.5}

	sel, err := s.SelectNext(context.Background(), Request{MasteryBySkill: mastery, Pool: pool})
	require.NoError(t, err)
	assert.Equal(t, "first", sel.Item.ID, "equal scores fall back to pool order")

	sel, err = s.SelectNext(context.Background(), Request{
		MasteryBySkill: mastery,
		Pool:           pool,
		RecentHistory:  []model.HistoryEntry{{ItemID: "first"}, {ItemID: "second"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "third", sel.Item.ID, "least exposed wins the tie")
}

func TestSelectNext_EmptyPoolHeuristic(t *testing.T) {
	s := New(&generator.Stub{}, DefaultConfig(), nil)

	_, err := s.SelectNext(context.Background(), Request{Domain: "react", Strategy: model.StrategyHeuristic})
	var noCandidate *model.ErrNoCandidateItem
	require.ErrorAs(t, err, &noCandidate)
	assert.Equal(t, "react", noCandidate.Domain)
}

func TestSelectNext_GeneratesWhenPoolEmpty(t *testing.T) {
	var got generator.ItemRequest
	stub := &generator.Stub{ItemFunc: func(_ context.Context, req generator.ItemRequest) (model.AssessmentItem, error) {
		got = req
		item := mcItem("", 0.5, "react")
		item.Options[0].ID, item.Options[1].ID = "", ""
		return item, nil
	}}
	s := New(stub, DefaultConfig(), nil)
	s.newID = func() string { return "gen-1" }

	sel, err := s.SelectNext(context.Background(), Request{
		Domain:         "frontend",
		MasteryBySkill: map[model.SkillID]float64{"react": 0.4, "css": 0.6},
		KnownSkills:    []model.Skill{{ID: "react", Domain: "frontend"}, {ID: "sql", Domain: "backend"}},
		Strategy:       model.StrategyGenerative,
	})
	require.NoError(t, err)
	assert.True(t, sel.Generated)
	assert.Equal(t, model.StrategyGenerative, sel.StrategyUsed)
	assert.Equal(t, "gen-1", sel.Item.ID)
	assert.Equal(t, "o1", sel.Item.Options[0].ID)
	assert.Equal(t, "o2", sel.Item.Options[1].ID)

	assert.InDelta(t, 0.5, got.TargetMastery, 1e-9)
	ids := make([]model.SkillID, len(got.Skills))
	for i, sk := range got.Skills {
		ids[i] = sk.ID
	}
	assert.Contains(t, ids, model.SkillID("react"))
	assert.Contains(t, ids, model.SkillID("css"))
	assert.NotContains(t, ids, model.SkillID("sql"))
}

func TestSelectNext_GeneratorFailureIsNoCandidate(t *testing.T) {
	stub := &generator.Stub{ItemFunc: func(context.Context, generator.ItemRequest) (model.AssessmentItem, error) {
		return model.AssessmentItem{}, &model.ErrGeneratorUnavailable{Op: generator.OpItem, Err: errors.New("timeout")}
	}}
	s := New(stub, DefaultConfig(), nil)

	_, err := s.SelectNext(context.Background(), Request{Domain: "react", Strategy: model.StrategyGenerative})
	var noCandidate *model.ErrNoCandidateItem
	require.ErrorAs(t, err, &noCandidate)
	assert.True(t, model.IsGeneratorUnavailable(err), "cause is preserved")
	assert.Equal(t, 1, stub.Calls(generator.OpItem), "no retry")
}

func TestSelectNext_MalformedGeneratedItem(t *testing.T) {
	stub := &generator.Stub{ItemFunc: func(context.Context, generator.ItemRequest) (model.AssessmentItem, error) {
		item := mcItem("x", 0.5, "react")
		item.Options[1].IsCorrect = true
		return item, nil
	}}
	s := New(stub, DefaultConfig(), nil)

	_, err := s.SelectNext(context.Background(), Request{
		MasteryBySkill: map[model.SkillID]float64{"react": 0.5},
		Strategy:       model.StrategyGenerative,
	})
	var noCandidate *model.ErrNoCandidateItem
	require.ErrorAs(t, err, &noCandidate)
	assert.Contains(t, noCandidate.Reason, "2 correct options")
}

func TestSelectNext_GeneratedItemWithUnknownSkill(t *testing.T) {
	stub := &generator.Stub{ItemFunc: func(context.Context, generator.ItemRequest) (model.AssessmentItem, error) {
		return mcItem("x", 0.5, "invented-skill"), nil
	}}
	s := New(stub, DefaultConfig(), nil)

	_, err := s.SelectNext(context.Background(), Request{
		MasteryBySkill: map[model.SkillID]float64{"react": 0.5},
		Strategy:       model.StrategyGenerative,
	})
	var invalid *model.ErrInvalidReference
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "invented-skill", invalid.ID)
}

func TestSelectNext_GeneratedOptionIDsStayDistinct(t *testing.T) {
	stub := &generator.Stub{ItemFunc: func(context.Context, generator.ItemRequest) (model.AssessmentItem, error) {
		item := mcItem("x", 0.5, "react")
		item.Options = []model.Option{
			{ID: "o2", Statement: "a"},
			{ID: "", Statement: "b", IsCorrect: true},
			{ID: "", Statement: "c"},
		}
		return item, nil
	}}
	s := New(stub, DefaultConfig(), nil)

	sel, err := s.SelectNext(context.Background(), Request{
		MasteryBySkill: map[model.SkillID]float64{"react": 0.5},
		Strategy:       model.StrategyGenerative,
	})
	require.NoError(t, err)

	ids := []string{sel.Item.Options[0].ID, sel.Item.Options[1].ID, sel.Item.Options[2].ID}
	assert.Equal(t, []string{"o2", "o1", "o3"}, ids)
	correct := sel.Item.CorrectOptions()
	require.Len(t, correct, 1)
	assert.NotEqual(t, "o2", correct[0].ID, "the wrong option must not share the key's id")
}

func TestSelectNext_GeneratedItemWithRepeatedOptionID(t *testing.T) {
	stub := &generator.Stub{ItemFunc: func(context.Context, generator.ItemRequest) (model.AssessmentItem, error) {
		item := mcItem("x", 0.5, "react")
		item.Options[1].ID = item.Options[0].ID
		return item, nil
	}}
	s := New(stub, DefaultConfig(), nil)

	_, err := s.SelectNext(context.Background(), Request{
		MasteryBySkill: map[model.SkillID]float64{"react": 0.5},
		Strategy:       model.StrategyGenerative,
	})
	var noCandidate *model.ErrNoCandidateItem
	require.ErrorAs(t, err, &noCandidate)
	assert.Contains(t, noCandidate.Reason, `repeats option id "o1"`)
}
