// Package replan revises a learning plan from recent mastery evidence. It
// makes the smallest structural change that responds to a trend (skip,
// remediate, challenge) and never edits a completed module.
package replan

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/mastery"
	"github.com/learnsmart/tutor/internal/model"
)

// Request is the input to Replan.
type Request struct {
	Plan         model.LearningPlan
	RecentEvents []model.Event
	SkillStates  []model.SkillState
	Catalog      *catalog.Catalog
	Strategy     model.Strategy
}

// Result is the revised plan and its diff.
type Result struct {
	Plan         model.LearningPlan      `json:"plan"`
	Changes      model.ChangeSummary     `json:"changes"`
	Trends       []generator.ModuleTrend `json:"trends"`
	StrategyUsed model.Strategy          `json:"strategyUsed"`
	FellBack     bool                    `json:"fellBack"`
}

// Replanner revises plans. It is safe for concurrent use.
type Replanner struct {
	gen    generator.ContentGenerator
	agg    *mastery.Aggregator
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// New creates a Replanner. agg supplies the trend window and threshold.
func New(gen generator.ContentGenerator, agg *mastery.Aggregator, logger *zap.Logger) *Replanner {
	if agg == nil {
		agg = mastery.NewAggregator(mastery.DefaultConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replanner{gen: gen, agg: agg, logger: logger, newID: uuid.NewString, now: time.Now}
}

// moduleTrend is the classified evidence for one open module.
type moduleTrend struct {
	id     string
	skills []model.SkillID
	trend  mastery.Trend
	net    float64
	n      int
}

// Replan returns a revised copy of req.Plan with the same planId and the
// next version. The input plan is not modified.
func (r *Replanner) Replan(ctx context.Context, req Request) (Result, error) {
	trends := r.classify(req)

	if req.Strategy == model.StrategyGenerative && r.gen != nil {
		res, err := r.generative(ctx, req, trends)
		if err == nil {
			return res, nil
		}
		if !model.IsGeneratorUnavailable(err) {
			return Result{}, err
		}
		r.logger.Warn("replan fell back to heuristic",
			zap.String("plan_id", req.Plan.PlanID), zap.Error(err))
		res, err = r.heuristic(req, trends)
		res.FellBack = true
		return res, err
	}
	return r.heuristic(req, trends)
}

func (r *Replanner) begin(req Request) (*model.LearningPlan, *editor) {
	plan := req.Plan.Clone()
	plan.Version++
	plan.UpdatedAt = r.now().UTC()
	return &plan, &editor{plan: &plan, newID: r.newID}
}

// classify computes the trend of every open module's skills in plan order.
func (r *Replanner) classify(req Request) []moduleTrend {
	deltas := mastery.DeltasFromEvents(userEvents(req.RecentEvents, req.Plan.UserID))
	var out []moduleTrend
	for _, m := range req.Plan.Modules {
		if !m.Status.Open() {
			continue
		}
		skills := moduleSkills(m, req.Catalog)
		scoped := mastery.ForSkills(deltas, skills)
		trend, net := r.agg.Trend(scoped)
		out = append(out, moduleTrend{id: m.ID, skills: skills, trend: trend, net: net, n: len(scoped)})
	}
	return out
}

func userEvents(events []model.Event, userID string) []model.Event {
	if userID == "" {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.UserID == "" || e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// moduleSkills returns the module's target skills, or the skills of its
// activities' content when none are declared.
func moduleSkills(m model.Module, cat *catalog.Catalog) []model.SkillID {
	if len(m.TargetSkills) > 0 {
		return m.TargetSkills
	}
	var out []model.SkillID
	seen := make(map[model.SkillID]bool)
	for _, a := range m.Activities {
		if cat == nil {
			break
		}
		e, ok := cat.Entry(a.ContentRef)
		if !ok {
			continue
		}
		for _, ref := range e.SkillRefs {
			if !seen[ref.SkillID] {
				seen[ref.SkillID] = true
				out = append(out, ref.SkillID)
			}
		}
	}
	return out
}

func (r *Replanner) heuristic(req Request, trends []moduleTrend) (Result, error) {
	plan, ed := r.begin(req)
	levels := r.masteryLevels(req)

	// Pending modules that improve are skipped in this pass, so a challenge
	// must land beyond all of them.
	skipping := make(map[string]bool)
	for _, t := range trends {
		if _, m, err := ed.module(t.id); err == nil && t.trend == mastery.TrendImproving && m.Status == model.StatusPending {
			skipping[t.id] = true
		}
	}

	for _, t := range trends {
		var err error
		switch t.trend {
		case mastery.TrendImproving:
			err = r.onImproving(ed, req.Catalog, t, skipping)
		case mastery.TrendDeclining:
			err = r.onDeclining(ed, req.Catalog, t, levels)
		default:
			detail := fmt.Sprintf("stagnant (net %+.2f)", t.net)
			if t.n == 0 {
				detail = "no recent evidence"
			}
			ed.note(t.id, model.ActionNoChange, detail)
		}
		if err != nil {
			return Result{}, err
		}
	}

	return Result{
		Plan:         *plan,
		Changes:      ed.changes,
		Trends:       exportTrends(trends),
		StrategyUsed: model.StrategyHeuristic,
	}, nil
}

func (r *Replanner) onImproving(ed *editor, cat *catalog.Catalog, t moduleTrend, skipping map[string]bool) error {
	i, m, err := ed.module(t.id)
	if err != nil {
		return err
	}
	if m.Status == model.StatusPending {
		if err := ed.skip(t.id, fmt.Sprintf("improving (net %+.2f)", t.net)); err != nil {
			return err
		}
	}
	if cat == nil {
		return nil
	}

	next := nextOpen(ed.plan, i, skipping)
	if next == nil {
		return nil
	}
	floor := maxDifficulty(*next, cat, t.skills)
	if math.IsInf(floor, -1) {
		floor = maxDifficulty(ed.plan.Modules[i], cat, t.skills)
	}
	used := ed.allRefs()
	for _, skill := range t.skills {
		harder := cat.Above(skill, floor, func(e model.ContentEntry) bool { return used[e.ID] })
		if len(harder) == 0 {
			continue
		}
		pick := harder[0]
		return ed.appendActivity(next.ID, pick, model.ActionChallengeAdded,
			fmt.Sprintf("%s (difficulty %.2f) for %s", pick.ID, pick.Difficulty, skill))
	}
	return nil
}

func (r *Replanner) onDeclining(ed *editor, cat *catalog.Catalog, t moduleTrend, levels map[model.SkillID]float64) error {
	_, m, err := ed.module(t.id)
	if err != nil {
		return err
	}
	if len(t.skills) == 0 || cat == nil {
		ed.note(t.id, model.ActionRemediationUnavailable, "no skills to remediate")
		return nil
	}

	weakest := t.skills[0]
	for _, s := range t.skills[1:] {
		if r.level(levels, s) < r.level(levels, weakest) {
			weakest = s
		}
	}

	ceiling := minDifficulty(*m, cat, weakest)
	if math.IsInf(ceiling, 1) {
		ceiling = r.level(levels, weakest)
	}
	open := ed.openRefs()
	easier := cat.Below(weakest, ceiling, func(e model.ContentEntry) bool { return open[e.ID] })
	if len(easier) == 0 {
		ed.note(t.id, model.ActionRemediationUnavailable,
			fmt.Sprintf("declining (net %+.2f), nothing easier than %.2f for %s", t.net, ceiling, weakest))
		return nil
	}

	pick := easier[0]
	return ed.insertRemediation(t.id, pick, "Review: "+cat.SkillName(weakest), weakest,
		fmt.Sprintf("%s (difficulty %.2f) for %s", pick.ID, pick.Difficulty, weakest))
}

// masteryLevels merges supplied states with the latest event values for
// skills that have no state.
func (r *Replanner) masteryLevels(req Request) map[model.SkillID]float64 {
	levels := make(map[model.SkillID]float64)
	for _, d := range mastery.DeltasFromEvents(userEvents(req.RecentEvents, req.Plan.UserID)) {
		levels[d.SkillID] = d.After
	}
	for _, s := range req.SkillStates {
		levels[s.SkillID] = s.Mastery
	}
	return levels
}

func (r *Replanner) level(levels map[model.SkillID]float64, s model.SkillID) float64 {
	if v, ok := levels[s]; ok {
		return v
	}
	return r.agg.Config().InitialMastery
}

// nextOpen returns the first open module after index i that is not about
// to be skipped.
func nextOpen(plan *model.LearningPlan, i int, skipping map[string]bool) *model.Module {
	for k := i + 1; k < len(plan.Modules); k++ {
		if m := plan.Modules[k]; m.Status.Open() && !skipping[m.ID] {
			return &plan.Modules[k]
		}
	}
	return nil
}

// maxDifficulty is the hardest catalog entry in m tagged with any of
// skills, or -Inf.
func maxDifficulty(m model.Module, cat *catalog.Catalog, skills []model.SkillID) float64 {
	out := math.Inf(-1)
	for _, a := range m.Activities {
		e, ok := cat.Entry(a.ContentRef)
		if !ok {
			continue
		}
		for _, s := range skills {
			if e.HasSkill(s) {
				out = max(out, e.Difficulty)
				break
			}
		}
	}
	return out
}

// minDifficulty is the easiest catalog entry in m tagged with skill, or
// +Inf.
func minDifficulty(m model.Module, cat *catalog.Catalog, skill model.SkillID) float64 {
	out := math.Inf(1)
	for _, a := range m.Activities {
		if e, ok := cat.Entry(a.ContentRef); ok && e.HasSkill(skill) {
			out = min(out, e.Difficulty)
		}
	}
	return out
}

func exportTrends(trends []moduleTrend) []generator.ModuleTrend {
	out := make([]generator.ModuleTrend, len(trends))
	for i, t := range trends {
		out[i] = generator.ModuleTrend{ModuleID: t.id, Trend: string(t.trend), Net: t.net}
	}
	return out
}

func hours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}
