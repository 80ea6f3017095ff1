package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnsmart/tutor/internal/llm"
	"github.com/learnsmart/tutor/internal/model"
)

func TestLLMGenerator_GenerateItem(t *testing.T) {
	mock := llm.NewMockProvider().JSON(`{
		"stem": "What does a closure capture?",
		"difficulty": 0.6,
		"skillIds": ["js-closures", "js-scope"],
		"options": [
			{"statement": "Variables from its lexical scope", "isCorrect": true, "feedback": "Think about where it was defined."},
			{"statement": "Only global variables", "isCorrect": false, "feedback": "Consider nested functions."},
			{"statement": "Nothing", "isCorrect": false, "feedback": "It does hold references."}
		]
	}`)
	g := NewLLMGenerator(mock, DefaultLLMConfig())
	g.newID = func() string { return "item-1" }

	item, err := g.GenerateItem(context.Background(), ItemRequest{
		Domain:        "javascript",
		TargetMastery: 0.55,
		Skills:        []model.Skill{{ID: "js-closures", Name: "Closures"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "What does a closure capture?", item.Stem)
	require.Len(t, item.Options, 3)
	assert.Equal(t, "o1", item.Options[0].ID)
	assert.Equal(t, "o3", item.Options[2].ID)
	assert.Len(t, item.CorrectOptions(), 1)

	require.Len(t, item.SkillRefs, 2)
	assert.Equal(t, model.SkillID("js-closures"), item.SkillRefs[0].SkillID)
	assert.Greater(t, item.SkillRefs[0].Weight, item.SkillRefs[1].Weight)

	req := mock.LastRequest()
	assert.Equal(t, ItemSchema, req.Schema)
	assert.Contains(t, req.Messages[0].Content, "js-closures: Closures")
	assert.Contains(t, req.Messages[0].Content, "0.55")
}

func TestLLMGenerator_GeneratePlan(t *testing.T) {
	mock := llm.NewMockProvider().JSON(`{
		"modules": [{"title": "Basics", "targetSkills": ["html"], "contentRefs": ["c1", "c2"]}],
		"rationale": "start simple"
	}`)
	g := NewLLMGenerator(mock, DefaultLLMConfig())

	plan, err := g.GeneratePlan(context.Background(), PlanRequest{
		Goals:       []model.Goal{{Title: "Web", TargetSkills: []model.SkillID{"html"}}},
		Constraints: model.Constraints{HoursPerWeek: 2},
		Entries: []model.ContentEntry{
			{ID: "c2", SkillRefs: []model.SkillRef{{SkillID: "html", Weight: 1}}, Difficulty: 0.3, EstimatedMinutes: 20, Type: model.ContentPractice},
			{ID: "c1", SkillRefs: []model.SkillRef{{SkillID: "html", Weight: 1}}, Difficulty: 0.1, EstimatedMinutes: 15, Type: model.ContentLesson},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Modules, 1)
	assert.Equal(t, []model.ContentID{"c1", "c2"}, plan.Modules[0].ContentRefs)
	assert.Equal(t, "start simple", plan.Rationale)

	user := mock.LastRequest().Messages[0].Content
	assert.Contains(t, user, "120 minutes per module")
	assert.Less(t, strings.Index(user, "c1 |"), strings.Index(user, "c2 |"), "catalog listed in id order")
}

func TestLLMGenerator_ReviseModules(t *testing.T) {
	mock := llm.NewMockProvider().JSON(`{"revisions": [
		{"action": "remediate", "moduleId": "m2", "contentRef": "c0", "beforeModuleId": "", "note": "declining"}
	]}`)
	g := NewLLMGenerator(mock, DefaultLLMConfig())

	revs, err := g.ReviseModules(context.Background(), ReviseRequest{
		Plan:   model.LearningPlan{PlanID: "p1", Version: 3},
		Trends: []ModuleTrend{{ModuleID: "m2", Trend: "declining", Net: -0.2}},
	})
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, ReviseRemediate, revs[0].Action)
	assert.Equal(t, model.ContentID("c0"), revs[0].ContentRef)
	assert.Contains(t, mock.LastRequest().Messages[0].Content, "m2: declining (-0.20)")
}

func TestLLMGenerator_JudgeAndExplain(t *testing.T) {
	mock := llm.NewMockProvider().
		JSON(`{"isCorrect": true, "score": 0.8, "explanation": "Mostly right."}`).
		JSON(`{"message": "  Close! Re-read the scope rules.  "}`)
	g := NewLLMGenerator(mock, DefaultLLMConfig())

	v, err := g.JudgeOpenAnswer(context.Background(), JudgeRequest{Stem: "Define hoisting", Answer: "moving declarations up"})
	require.NoError(t, err)
	assert.True(t, v.IsCorrect)
	require.NotNil(t, v.Score)
	assert.InDelta(t, 0.8, *v.Score, 1e-9)

	msg, err := g.ExplainAnswer(context.Background(), ExplainRequest{Stem: "q", Category: model.CategorySpeedRush})
	require.NoError(t, err)
	assert.Equal(t, "Close! Re-read the scope rules.", msg)
	assert.Contains(t, mock.LastRequest().Messages[0].Content, "slowing down")
	assert.NotContains(t, mock.LastRequest().Messages[0].Content, "you may reveal it")
}

func TestLLMGenerator_GenerateLessonsTruncates(t *testing.T) {
	mock := llm.NewMockProvider().JSON(`{"lessons": [
		{"title": "A", "description": "a", "body": "# A", "estimatedMinutes": 5, "difficulty": 0.2, "type": "lesson"},
		{"title": "B", "description": "b", "body": "# B", "estimatedMinutes": 5, "difficulty": 0.3, "type": "practice"}
	]}`)
	g := NewLLMGenerator(mock, DefaultLLMConfig())

	lessons, err := g.GenerateLessons(context.Background(), LessonRequest{Domain: "css", N: 1, Locale: "es-ES"})
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "A", lessons[0].Title)
	assert.Equal(t, model.ContentLesson, lessons[0].Type)
}

func TestLLMGenerator_PropagatesProviderError(t *testing.T) {
	mock := llm.NewMockProvider().Fail(&llm.ErrRateLimit{Err: errors.New("429")})
	g := NewLLMGenerator(mock, DefaultLLMConfig())

	_, err := g.GenerateLessons(context.Background(), LessonRequest{Domain: "css", N: 2})
	var rl *llm.ErrRateLimit
	require.ErrorAs(t, err, &rl)
}

func TestLLMGenerator_RejectsMalformedJSON(t *testing.T) {
	mock := llm.NewMockProvider().JSON(`not json`)
	g := NewLLMGenerator(mock, DefaultLLMConfig())

	_, err := g.JudgeOpenAnswer(context.Background(), JudgeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse judge-open-answer response")
}
