// Package planner builds an initial learning plan from goals, a weekly time
// budget and the content catalog.
package planner

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

// Request is the input to Generate.
type Request struct {
	Profile     model.Profile
	Goals       []model.Goal
	Constraints model.Constraints
	Catalog     *catalog.Catalog
	Strategy    model.Strategy
}

// Result is a generated plan plus a generation log for audit display.
type Result struct {
	Plan         model.LearningPlan `json:"plan"`
	Log          string             `json:"log"`
	StrategyUsed model.Strategy     `json:"strategyUsed"`
	FellBack     bool               `json:"fellBack"`
}

// Planner generates plans. It is safe for concurrent use.
type Planner struct {
	gen    generator.ContentGenerator
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// New creates a Planner. gen may be nil when only the heuristic strategy
// is used.
func New(gen generator.ContentGenerator, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{gen: gen, logger: logger, newID: uuid.NewString, now: time.Now}
}

// Generate builds a plan. It fails with *model.ErrInsufficientCatalog when
// no entry covers any goal skill, under either strategy. A generated plan
// that references unknown content fails with *model.ErrInvalidReference;
// any other generator failure falls back to the heuristic.
func (p *Planner) Generate(ctx context.Context, req Request) (Result, error) {
	goalSkills := goalSkillList(req.Goals)
	matched := matchEntries(req.Catalog, goalSkills)
	if len(matched) == 0 {
		return Result{}, &model.ErrInsufficientCatalog{Skills: goalSkills}
	}

	if req.Strategy == model.StrategyGenerative && p.gen != nil {
		res, err := p.generative(ctx, req, matched, goalSkills)
		if err == nil {
			return res, nil
		}
		if !model.IsGeneratorUnavailable(err) {
			return Result{}, err
		}
		p.logger.Warn("plan generation fell back to heuristic",
			zap.String("user_id", req.Profile.UserID), zap.Error(err))
		res = p.heuristic(req, matched, goalSkills)
		res.FellBack = true
		return res, nil
	}
	return p.heuristic(req, matched, goalSkills), nil
}

// goalSkillList flattens goal target skills in goal order, without
// duplicates.
func goalSkillList(goals []model.Goal) []model.SkillID {
	var out []model.SkillID
	for _, g := range goals {
		for _, s := range g.TargetSkills {
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

type assigned struct {
	entry model.ContentEntry
	skill model.SkillID
}

// matchEntries keeps entries tagged with any goal skill and assigns each to
// its highest-weight goal skill; earlier goal skills win ties.
func matchEntries(cat *catalog.Catalog, goalSkills []model.SkillID) []assigned {
	if cat == nil {
		return nil
	}
	rank := make(map[model.SkillID]int, len(goalSkills))
	for i, s := range goalSkills {
		rank[s] = i
	}

	var out []assigned
	for _, e := range cat.Entries() {
		best, bestW, found := model.SkillID(""), -1.0, false
		for _, r := range e.SkillRefs {
			i, ok := rank[r.SkillID]
			if !ok {
				continue
			}
			if !found || r.Weight > bestW || (r.Weight == bestW && i < rank[best]) {
				best, bestW, found = r.SkillID, r.Weight, true
			}
		}
		if found {
			out = append(out, assigned{entry: e, skill: best})
		}
	}
	return out
}

func (p *Planner) heuristic(req Request, matched []assigned, goalSkills []model.SkillID) Result {
	groups := make(map[model.SkillID][]model.ContentEntry)
	minDiff := make(map[model.SkillID]float64)
	var skills []model.SkillID
	for _, a := range matched {
		if _, ok := groups[a.skill]; !ok {
			skills = append(skills, a.skill)
			minDiff[a.skill] = math.Inf(1)
		}
		groups[a.skill] = append(groups[a.skill], a.entry)
		minDiff[a.skill] = min(minDiff[a.skill], a.entry.Difficulty)
	}

	ordered := req.Catalog.OrderSkills(skills, func(s model.SkillID) float64 { return minDiff[s] })

	budget := int(math.Round(req.Constraints.HoursPerWeek * 60))
	var modules []model.Module
	for _, skill := range ordered {
		entries := groups[skill]
		slices.SortStableFunc(entries, func(a, b model.ContentEntry) int {
			if a.Difficulty != b.Difficulty {
				if a.Difficulty < b.Difficulty {
					return -1
				}
				return 1
			}
			if a.ID < b.ID {
				return -1
			}
			if a.ID > b.ID {
				return 1
			}
			return 0
		})
		modules = append(modules, p.pack(req.Catalog.SkillName(skill), skill, entries, budget)...)
	}
	for i := range modules {
		modules[i].Position = i + 1
	}

	budgetDesc := "unbounded"
	if budget > 0 {
		budgetDesc = fmt.Sprintf("%d min/module", budget)
	}
	return Result{
		Plan: p.newPlan(req.Profile.UserID, model.StrategyHeuristic, modules),
		Log: fmt.Sprintf("heuristic: %d entries for %d goal skills packed into %d modules (budget %s)",
			len(matched), len(goalSkills), len(modules), budgetDesc),
		StrategyUsed: model.StrategyHeuristic,
	}
}

// pack greedily fills modules up to budget minutes, carrying overflow into
// continuation modules. budget <= 0 means one module per skill.
func (p *Planner) pack(name string, skill model.SkillID, entries []model.ContentEntry, budget int) []model.Module {
	var (
		out     []model.Module
		current []model.ContentEntry
		minutes int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		title := name
		if len(out) > 0 {
			title = fmt.Sprintf("%s (part %d)", name, len(out)+1)
		}
		out = append(out, p.newModule(title, []model.SkillID{skill}, current))
		current, minutes = nil, 0
	}
	for _, e := range entries {
		if budget > 0 && len(current) > 0 && minutes+e.EstimatedMinutes > budget {
			flush()
		}
		current = append(current, e)
		minutes += e.EstimatedMinutes
	}
	flush()
	return out
}

func (p *Planner) newModule(title string, skills []model.SkillID, entries []model.ContentEntry) model.Module {
	m := model.Module{
		ID:           p.newID(),
		Title:        title,
		Status:       model.StatusPending,
		TargetSkills: skills,
	}
	for _, e := range entries {
		m.Activities = append(m.Activities, model.Activity{
			ID:               p.newID(),
			ContentRef:       e.ID,
			Type:             e.Type,
			Status:           model.StatusPending,
			EstimatedMinutes: e.EstimatedMinutes,
		})
	}
	m.EstimatedHours = Hours(m.Minutes())
	return m
}

// Hours converts minutes to hours rounded to two decimals.
func Hours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}

func (p *Planner) newPlan(userID string, by model.Strategy, modules []model.Module) model.LearningPlan {
	now := p.now().UTC()
	return model.LearningPlan{
		PlanID:      p.newID(),
		UserID:      userID,
		Version:     1,
		GeneratedBy: by,
		CreatedAt:   now,
		UpdatedAt:   now,
		Modules:     modules,
	}
}
