// Package generator defines the ContentGenerator collaborator the decision
// components call under the generative strategy, an LLM-backed
// implementation, and a guard that bounds every call.
package generator

import (
	"context"
	"time"

	"github.com/learnsmart/tutor/internal/model"
)

// ContentGenerator is the generative collaborator. Implementations may be
// slow, rate-limited or failing; callers reach them through a Guard, which
// converts every failure into *model.ErrGeneratorUnavailable.
type ContentGenerator interface {
	// GeneratePlan proposes modules built from the supplied entries.
	GeneratePlan(ctx context.Context, req PlanRequest) (GeneratedPlan, error)

	// ReviseModules proposes revisions to the open part of a plan.
	ReviseModules(ctx context.Context, req ReviseRequest) ([]Revision, error)

	// GenerateItem synthesizes an assessment item near a target mastery.
	GenerateItem(ctx context.Context, req ItemRequest) (model.AssessmentItem, error)

	// JudgeOpenAnswer decides whether a free-text answer is correct.
	JudgeOpenAnswer(ctx context.Context, req JudgeRequest) (Verdict, error)

	// ExplainAnswer writes learner-facing feedback text.
	ExplainAnswer(ctx context.Context, req ExplainRequest) (string, error)

	// GenerateLessons writes n micro-lessons for a domain.
	GenerateLessons(ctx context.Context, req LessonRequest) ([]model.Lesson, error)
}

// PlanRequest is the input to GeneratePlan. Entries is already narrowed to
// content matching the goals; the generator may only reference those ids.
type PlanRequest struct {
	Profile     model.Profile
	Goals       []model.Goal
	Constraints model.Constraints
	Entries     []model.ContentEntry
	Skills      []model.Skill
}

// GeneratedModule is one proposed module.
type GeneratedModule struct {
	Title        string            `json:"title"`
	TargetSkills []model.SkillID   `json:"targetSkills"`
	ContentRefs  []model.ContentID `json:"contentRefs"`
}

// GeneratedPlan is the generator's plan proposal.
type GeneratedPlan struct {
	Modules   []GeneratedModule `json:"modules"`
	Rationale string            `json:"rationale"`
}

// ModuleTrend summarizes the mastery trend of one open module.
type ModuleTrend struct {
	ModuleID string  `json:"moduleId"`
	Trend    string  `json:"trend"`
	Net      float64 `json:"net"`
}

// ReviseRequest is the input to ReviseModules.
type ReviseRequest struct {
	Plan        model.LearningPlan
	Trends      []ModuleTrend
	SkillStates []model.SkillState
	Entries     []model.ContentEntry
}

// RevisionAction is a structural edit proposed by the generator.
type RevisionAction string

const (
	ReviseSkip      RevisionAction = "skip"
	ReviseRemediate RevisionAction = "remediate"
	ReviseChallenge RevisionAction = "challenge"
	ReviseReorder   RevisionAction = "reorder"
	ReviseNote      RevisionAction = "note"
)

// Revision is one proposed edit. ContentRef is set for remediate and
// challenge; BeforeModuleID is set for reorder.
type Revision struct {
	Action         RevisionAction  `json:"action"`
	ModuleID       string          `json:"moduleId"`
	ContentRef     model.ContentID `json:"contentRef,omitempty"`
	BeforeModuleID string          `json:"beforeModuleId,omitempty"`
	Note           string          `json:"note,omitempty"`
}

// ItemRequest is the input to GenerateItem.
type ItemRequest struct {
	Domain        string
	TargetMastery float64
	Skills        []model.Skill
	Locale        string
}

// JudgeRequest is the input to JudgeOpenAnswer.
type JudgeRequest struct {
	ItemID string
	Stem   string
	Answer string
	Skills []string
}

// Verdict is the generator's judgment of an open answer. Score, when set,
// is a partial credit in [0,1].
type Verdict struct {
	IsCorrect   bool     `json:"isCorrect"`
	Score       *float64 `json:"score,omitempty"`
	Explanation string   `json:"explanation"`
}

// ExplainRequest is the input to ExplainAnswer. CorrectStatement is only
// populated when the caller expects immediate correction.
type ExplainRequest struct {
	Stem             string
	ChosenStatement  string
	ChosenFeedback   string
	CorrectStatement string
	IsCorrect        bool
	SkillName        string
	Category         model.ErrorCategory
}

// LessonRequest is the input to GenerateLessons.
type LessonRequest struct {
	Domain     string
	N          int
	Level      string
	Difficulty string
	Locale     string
}

type contextKey string

const callTimeoutKey contextKey = "generator_call_timeout"

// WithCallTimeout attaches the caller-supplied bound for generator calls.
func WithCallTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, callTimeoutKey, d)
}

// CallTimeoutFrom returns the caller-supplied bound, if any.
func CallTimeoutFrom(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(callTimeoutKey).(time.Duration)
	return d, ok && d > 0
}
