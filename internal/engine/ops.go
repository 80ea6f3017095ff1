package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/feedback"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/itemselect"
	"github.com/learnsmart/tutor/internal/mastery"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/planner"
	"github.com/learnsmart/tutor/internal/replan"
)

// PlanRequest asks for a new learning plan.
type PlanRequest struct {
	CallOptions
	Profile     model.Profile
	Goals       []model.Goal
	Constraints model.Constraints
	Catalog     *catalog.Catalog
}

// GeneratePlan builds a plan for the learner's goals.
func (e *Engine) GeneratePlan(ctx context.Context, req PlanRequest) (res planner.Result, err error) {
	ctx, d := e.begin(ctx, OpGeneratePlan, req.CallOptions)
	d.record.UserID = req.Profile.UserID
	defer func() { e.finish(ctx, d, err) }()

	res, err = e.planner.Generate(ctx, planner.Request{
		Profile:     req.Profile,
		Goals:       req.Goals,
		Constraints: req.Constraints,
		Catalog:     req.Catalog,
		Strategy:    d.requested,
	})
	if err != nil {
		return planner.Result{}, err
	}

	d.used(res.StrategyUsed, res.FellBack)
	d.record.PlanID = res.Plan.PlanID
	d.record.PlanVersion = res.Plan.Version
	d.record.Summary = fmt.Sprintf("%d modules, %d activities", len(res.Plan.Modules), len(res.Plan.ContentRefs()))
	return res, nil
}

// ReplanRequest asks for a revision of an existing plan.
type ReplanRequest struct {
	CallOptions
	Plan         model.LearningPlan
	RecentEvents []model.Event
	SkillStates  []model.SkillState
	Catalog      *catalog.Catalog
}

// Replan revises req.Plan. The change summary is written to the audit log
// as the plan's replan history.
func (e *Engine) Replan(ctx context.Context, req ReplanRequest) (res replan.Result, err error) {
	ctx, d := e.begin(ctx, OpReplan, req.CallOptions)
	d.record.UserID = req.Plan.UserID
	d.record.PlanID = req.Plan.PlanID
	d.record.PlanVersion = req.Plan.Version
	defer func() { e.finish(ctx, d, err) }()

	res, err = e.replanner.Replan(ctx, replan.Request{
		Plan:         req.Plan,
		RecentEvents: req.RecentEvents,
		SkillStates:  req.SkillStates,
		Catalog:      req.Catalog,
		Strategy:     d.requested,
	})
	if err != nil {
		return replan.Result{}, err
	}

	d.used(res.StrategyUsed, res.FellBack)
	d.record.PlanVersion = res.Plan.Version
	d.record.Summary = res.Changes.String()
	return res, nil
}

// NextItemRequest asks for the next assessment item.
type NextItemRequest struct {
	CallOptions
	UserID         string
	Domain         string
	MasteryBySkill map[model.SkillID]float64
	KnownSkills    []model.Skill
	Pool           []model.AssessmentItem
	RecentHistory  []model.HistoryEntry
	Locale         string
}

// NextItem selects or, with an empty pool under the generative strategy,
// synthesizes the next item.
func (e *Engine) NextItem(ctx context.Context, req NextItemRequest) (sel itemselect.Selection, err error) {
	ctx, d := e.begin(ctx, OpNextItem, req.CallOptions)
	d.record.UserID = req.UserID
	defer func() { e.finish(ctx, d, err) }()

	sel, err = e.selector.SelectNext(ctx, itemselect.Request{
		Domain:         req.Domain,
		MasteryBySkill: req.MasteryBySkill,
		KnownSkills:    req.KnownSkills,
		Pool:           req.Pool,
		RecentHistory:  req.RecentHistory,
		Strategy:       d.requested,
		Locale:         req.Locale,
	})
	if err != nil {
		return itemselect.Selection{}, err
	}

	d.used(sel.StrategyUsed, false)
	d.record.Summary = fmt.Sprintf("item %s: %s", sel.Item.ID, sel.Rationale)
	return sel, nil
}

// GradeRequest submits one response for grading and feedback.
type GradeRequest struct {
	CallOptions
	UserID   string
	Item     model.AssessmentItem
	Response model.Response
	// SkillStates, when non-nil, are updated with the graded response.
	SkillStates                 []model.SkillState
	Catalog                     *catalog.Catalog
	ImmediateCorrectionExpected bool
}

// GradeResult is the verdict, the learner feedback and, when states were
// supplied, the mastery update.
type GradeResult struct {
	Graded       model.GradedResponse `json:"graded"`
	Feedback     feedback.Explanation `json:"feedback"`
	Mastery      *MasteryResult       `json:"mastery,omitempty"`
	Events       []model.Event        `json:"events"`
	StrategyUsed model.Strategy       `json:"strategyUsed"`
	FellBack     bool                 `json:"fellBack"`
}

// Grade evaluates a response, resolves undetermined correctness, explains
// the outcome and folds it into mastery.
func (e *Engine) Grade(ctx context.Context, req GradeRequest) (res GradeResult, err error) {
	ctx, d := e.begin(ctx, OpGrade, req.CallOptions)
	d.record.UserID = req.UserID
	defer func() { e.finish(ctx, d, err) }()

	resolved, err := e.judge.Resolve(ctx, req.Item, req.Response, d.requested)
	if err != nil {
		return GradeResult{}, err
	}

	states := stateMap(req.SkillStates)
	ec := feedback.ExplainContext{
		ImmediateCorrectionExpected: req.ImmediateCorrectionExpected,
		Catalog:                     req.Catalog,
		JudgeExplanation:            resolved.Explanation,
		Strategy:                    d.requested,
	}
	if primary, ok := req.Item.PrimarySkill(); ok {
		if s, ok := states[primary]; ok {
			m := s.Mastery
			ec.PriorMastery = &m
		}
	}
	explained := e.judge.Explain(ctx, req.Item, resolved.Graded, ec)

	res = GradeResult{
		Graded:       resolved.Graded,
		Feedback:     explained,
		StrategyUsed: model.StrategyHeuristic,
		FellBack:     resolved.FellBack || explained.FellBack,
	}
	if resolved.StrategyUsed == model.StrategyGenerative || explained.StrategyUsed == model.StrategyGenerative {
		res.StrategyUsed = model.StrategyGenerative
	}

	res.Events = append(res.Events, model.Event{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Type:       model.EventItemAnswered,
		OccurredAt: resolved.Graded.GradedAt,
		EntityID:   req.Item.ID,
	})
	if req.SkillStates != nil {
		m := e.applyMastery(req.UserID, states, []model.GradedResponse{resolved.Graded},
			map[string][]model.SkillRef{req.Item.ID: req.Item.SkillRefs})
		res.Mastery = &m
		res.Events = append(res.Events, m.Events...)
	}

	d.used(res.StrategyUsed, res.FellBack)
	d.record.Summary = fmt.Sprintf("item %s: %s", req.Item.ID, gradeSummary(resolved.Graded))
	return res, nil
}

func gradeSummary(g model.GradedResponse) string {
	switch {
	case g.Pending():
		return "pending review"
	case g.IsCorrect:
		return fmt.Sprintf("correct (score %.2f)", g.Score)
	default:
		return fmt.Sprintf("incorrect (score %.2f)", g.Score)
	}
}

// MasteryRequest folds graded responses into skill states.
type MasteryRequest struct {
	UserID string
	States []model.SkillState
	Graded []model.GradedResponse
	// SkillRefs maps item id to the skills the item is tagged with.
	SkillRefs map[string][]model.SkillRef
}

// MasteryResult holds the updated states, one delta per skill update, the
// matching tracking events and any band transitions.
type MasteryResult struct {
	States      []model.SkillState   `json:"states"`
	Deltas      []model.MasteryDelta `json:"deltas"`
	Events      []model.Event        `json:"events"`
	Transitions []mastery.Transition `json:"transitions"`
}

// UpdateMastery applies graded responses in order. Pending responses are
// ignored.
func (e *Engine) UpdateMastery(ctx context.Context, req MasteryRequest) (res MasteryResult, err error) {
	ctx, d := e.begin(ctx, OpUpdateMastery, CallOptions{Strategy: model.StrategyHeuristic})
	d.record.UserID = req.UserID
	defer func() { e.finish(ctx, d, err) }()

	for _, g := range req.Graded {
		if _, ok := req.SkillRefs[g.ItemID]; !ok {
			return MasteryResult{}, &model.ErrInvalidReference{Kind: "item", ID: g.ItemID, Where: "mastery update"}
		}
	}

	res = e.applyMastery(req.UserID, stateMap(req.States), req.Graded, req.SkillRefs)
	d.record.Summary = fmt.Sprintf("%d responses, %d deltas, %d transitions",
		len(req.Graded), len(res.Deltas), len(res.Transitions))
	return res, nil
}

func (e *Engine) applyMastery(userID string, before map[model.SkillID]model.SkillState, graded []model.GradedResponse, refs map[string][]model.SkillRef) MasteryResult {
	after, deltas := e.agg.Fold(before, graded, refs)

	res := MasteryResult{
		States:      stateList(after),
		Deltas:      deltas,
		Events:      make([]model.Event, 0, len(deltas)),
		Transitions: e.cfg.Mastery.Transitions(before, after),
	}
	if res.Deltas == nil {
		res.Deltas = []model.MasteryDelta{}
	}
	for _, delta := range deltas {
		ev := model.MasteryEvent(userID, delta)
		ev.ID = uuid.NewString()
		res.Events = append(res.Events, ev)
	}
	return res
}

// LessonsRequest asks for generated micro-lessons.
type LessonsRequest struct {
	CallOptions
	Domain     string
	N          int
	Level      string
	Difficulty string
	Locale     string
}

// GenerateLessons has no heuristic counterpart: without a generator, or
// when the generator fails, it returns *model.ErrGeneratorUnavailable.
func (e *Engine) GenerateLessons(ctx context.Context, req LessonsRequest) (lessons []model.Lesson, err error) {
	req.Strategy = model.StrategyGenerative
	ctx, d := e.begin(ctx, OpGenerateLessons, req.CallOptions)
	defer func() { e.finish(ctx, d, err) }()

	if e.gen == nil {
		return nil, &model.ErrGeneratorUnavailable{Op: generator.OpLessons, Err: errNoGenerator}
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = e.cfg.LessonLocale
	}

	lessons, err = e.gen.GenerateLessons(ctx, generator.LessonRequest{
		Domain:     req.Domain,
		N:          req.N,
		Level:      req.Level,
		Difficulty: req.Difficulty,
		Locale:     locale,
	})
	if err != nil {
		if !model.IsGeneratorUnavailable(err) {
			err = &model.ErrGeneratorUnavailable{Op: generator.OpLessons, Err: err}
		}
		return nil, err
	}

	d.record.Summary = fmt.Sprintf("%d lessons on %q (%s)", len(lessons), req.Domain, locale)
	e.logger.Debug("lessons generated", zap.String("domain", req.Domain), zap.Int("count", len(lessons)))
	return lessons, nil
}

func stateMap(states []model.SkillState) map[model.SkillID]model.SkillState {
	out := make(map[model.SkillID]model.SkillState, len(states))
	for _, s := range states {
		out[s.SkillID] = s
	}
	return out
}

// stateList returns states sorted by skill id.
func stateList(states map[model.SkillID]model.SkillState) []model.SkillState {
	out := make([]model.SkillState, 0, len(states))
	for _, s := range states {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b model.SkillState) int { return strings.Compare(string(a.SkillID), string(b.SkillID)) })
	return out
}

var errNoGenerator = errors.New("no content generator configured")
