package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"insufficient", &ErrInsufficientCatalog{Skills: []SkillID{"react"}}, KindInsufficientCatalog},
		{"wrapped invalid ref", fmt.Errorf("plan: %w", &ErrInvalidReference{Kind: "content", ID: "c9"}), KindInvalidReference},
		{"no candidate wrapping unavailable", &ErrNoCandidateItem{Domain: "web", Reason: "pool empty", Err: &ErrGeneratorUnavailable{Op: "item"}}, KindNoCandidateItem},
		{"undetermined", &ErrUndeterminedCorrectness{ItemID: "i1"}, KindUndeterminedCorrectness},
		{"unavailable", &ErrGeneratorUnavailable{Op: "plan", Err: errors.New("timeout")}, KindGeneratorUnavailable},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrGeneratorUnavailable_Unwrap(t *testing.T) {
	inner := errors.New("deadline")
	err := &ErrGeneratorUnavailable{Op: "lessons", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to reach the wrapped error")
	}
	if !IsGeneratorUnavailable(fmt.Errorf("wrap: %w", err)) {
		t.Fatal("expected IsGeneratorUnavailable through wrapping")
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("", StrategyHeuristic)
	if err != nil || s != StrategyHeuristic {
		t.Fatalf("empty: got %q, %v", s, err)
	}
	s, err = ParseStrategy("generative", StrategyHeuristic)
	if err != nil || s != StrategyGenerative {
		t.Fatalf("generative: got %q, %v", s, err)
	}
	if _, err := ParseStrategy("oracle", StrategyHeuristic); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestPrimarySkill(t *testing.T) {
	item := AssessmentItem{SkillRefs: []SkillRef{{"a", 0.3}, {"b", 0.7}, {"c", 0.7}}}
	got, ok := item.PrimarySkill()
	if !ok || got != "b" {
		t.Fatalf("PrimarySkill() = %q, %v; want b", got, ok)
	}
	if _, ok := (AssessmentItem{}).PrimarySkill(); ok {
		t.Fatal("expected no primary skill for untagged item")
	}
}

func TestLearningPlanClone_DoesNotAlias(t *testing.T) {
	override := 15
	p := LearningPlan{
		PlanID: "p1",
		Modules: []Module{{
			ID:           "m1",
			TargetSkills: []SkillID{"s1"},
			Activities:   []Activity{{ID: "a1", ContentRef: "c1", OverrideEstimatedMinutes: &override}},
		}},
	}
	c := p.Clone()
	c.Modules[0].Activities[0].ContentRef = "c2"
	*c.Modules[0].Activities[0].OverrideEstimatedMinutes = 99
	c.Modules[0].TargetSkills[0] = "s2"

	if p.Modules[0].Activities[0].ContentRef != "c1" {
		t.Fatal("clone aliased activities")
	}
	if *p.Modules[0].Activities[0].OverrideEstimatedMinutes != 15 {
		t.Fatal("clone aliased override minutes")
	}
	if p.Modules[0].TargetSkills[0] != "s1" {
		t.Fatal("clone aliased target skills")
	}
}

func TestChangeSummary(t *testing.T) {
	var empty ChangeSummary
	if empty.String() != "no changes" {
		t.Fatalf("empty summary = %q", empty.String())
	}
	cs := ChangeSummary{
		{ModuleID: "m1", Action: ActionNoChange, Detail: "stagnant"},
		{ModuleID: "m2", Action: ActionSkipped},
	}
	if !cs.Structural() {
		t.Fatal("expected structural summary")
	}
	if got, want := cs.String(), "m1: no_change (stagnant); m2: skipped"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if (ChangeSummary{{ModuleID: "m1", Action: ActionNoChange}}).Structural() {
		t.Fatal("note-only summary should not be structural")
	}
}
