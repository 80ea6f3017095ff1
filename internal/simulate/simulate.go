// Package simulate drives the engine with synthetic learners: each learner
// gets a plan, answers items according to a hidden ability per skill, makes
// progress through the plan and is replanned at a fixed cadence. Plans and
// tracking events go through the same repositories a real client would use.
package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/engine"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/store"
)

type Config struct {
	Learners    int
	Rounds      int
	ReplanEvery int
	Parallel    int
	Seed        uint64
	Strategy    model.Strategy
}

func DefaultConfig() Config {
	return Config{
		Learners:    4,
		Rounds:      24,
		ReplanEvery: 6,
		Parallel:    4,
		Seed:        1,
	}
}

// Outcome is the end state of one simulated learner.
type Outcome struct {
	UserID   string
	Plan     model.LearningPlan
	States   []model.SkillState
	Answered int
	Correct  int
	Pending  int
	Changes  []model.ChangeSummary
}

// Replans is the number of replans the learner went through.
func (o Outcome) Replans() int { return len(o.Changes) }

type Runner struct {
	eng    *engine.Engine
	plans  store.PlanRepo
	events store.LearnerEventRepo
	cfg    Config
	logger *zap.Logger
}

func New(eng *engine.Engine, plans store.PlanRepo, events store.LearnerEventRepo, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Learners <= 0 {
		cfg.Learners = 1
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	return &Runner{eng: eng, plans: plans, events: events, cfg: cfg, logger: logger}
}

// Run simulates every learner concurrently and returns outcomes in learner
// order. The first learner error cancels the rest.
func (r *Runner) Run(ctx context.Context, fx *catalog.Fixture, cat *catalog.Catalog) ([]Outcome, error) {
	out := make([]Outcome, r.cfg.Learners)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for i := range out {
		g.Go(func() error {
			o, err := r.learner(ctx, i, fx, cat)
			if err != nil {
				return fmt.Errorf("learner %d: %w", i+1, err)
			}
			out[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) learner(ctx context.Context, i int, fx *catalog.Fixture, cat *catalog.Catalog) (Outcome, error) {
	rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(i)))
	opts := engine.CallOptions{Strategy: r.cfg.Strategy}

	profile := fx.Profile
	base := profile.UserID
	if base == "" {
		base = "learner"
	}
	profile.UserID = fmt.Sprintf("%s-%02d", base, i+1)
	log := r.logger.With(zap.String("user_id", profile.UserID))

	ability := make(map[model.SkillID]float64)
	for _, s := range cat.Skills() {
		ability[s.ID] = 0.2 + 0.6*rng.Float64()
	}

	planned, err := r.eng.GeneratePlan(ctx, engine.PlanRequest{
		CallOptions: opts,
		Profile:     profile,
		Goals:       fx.Goals,
		Constraints: fx.Constraints,
		Catalog:     cat,
	})
	if err != nil {
		return Outcome{}, err
	}
	plan := planned.Plan
	if err := r.plans.Save(ctx, plan); err != nil {
		return Outcome{}, fmt.Errorf("save plan: %w", err)
	}

	o := Outcome{UserID: profile.UserID}
	states := []model.SkillState{}
	var history []model.HistoryEntry

	for round := 1; round <= r.cfg.Rounds; round++ {
		sel, err := r.eng.NextItem(ctx, engine.NextItemRequest{
			CallOptions:    opts,
			UserID:         profile.UserID,
			Domain:         fx.Domain,
			MasteryBySkill: masteryBySkill(states),
			KnownSkills:    cat.Skills(),
			Pool:           fx.Items,
			RecentHistory:  history,
			Locale:         profile.Locale,
		})
		if err != nil {
			return o, err
		}

		graded, err := r.eng.Grade(ctx, engine.GradeRequest{
			CallOptions: opts,
			UserID:      profile.UserID,
			Item:        sel.Item,
			Response:    answer(rng, sel.Item, ability),
			SkillStates: states,
			Catalog:     cat,
		})
		if err != nil {
			return o, err
		}
		if graded.Mastery != nil {
			states = graded.Mastery.States
		}

		o.Answered++
		switch {
		case graded.Graded.Pending():
			o.Pending++
		case graded.Graded.IsCorrect:
			o.Correct++
		}
		history = append(history, model.HistoryEntry{
			ItemID:     sel.Item.ID,
			IsCorrect:  graded.Graded.IsCorrect,
			AnsweredAt: graded.Graded.GradedAt,
		})
		practice(ability, sel.Item)

		events := graded.Events
		if ev, ok := advance(&plan, profile.UserID, graded.Graded.GradedAt); ok {
			events = append(events, ev)
		}
		if err := r.events.AppendEvents(ctx, events...); err != nil {
			return o, fmt.Errorf("record events: %w", err)
		}

		if r.cfg.ReplanEvery > 0 && round%r.cfg.ReplanEvery == 0 {
			recent, err := r.events.RecentEvents(ctx, profile.UserID, 100)
			if err != nil {
				return o, fmt.Errorf("recent events: %w", err)
			}
			revised, err := r.eng.Replan(ctx, engine.ReplanRequest{
				CallOptions:  opts,
				Plan:         plan,
				RecentEvents: recent,
				SkillStates:  states,
				Catalog:      cat,
			})
			if err != nil {
				return o, err
			}
			if err := r.plans.Save(ctx, revised.Plan); err != nil {
				return o, fmt.Errorf("save plan: %w", err)
			}
			plan = revised.Plan
			o.Changes = append(o.Changes, revised.Changes)
			log.Debug("replanned", zap.Int("round", round), zap.Int("version", plan.Version),
				zap.Stringer("changes", revised.Changes))
		}
	}

	o.Plan = plan
	o.States = states
	return o, nil
}

// answer responds correctly with a probability that grows with the gap
// between the learner's ability and the item difficulty.
func answer(rng *rand.Rand, item model.AssessmentItem, ability map[model.SkillID]float64) model.Response {
	resp := model.Response{ItemID: item.ID, ResponseTimeMs: 3000 + rng.IntN(27000)}

	skill, _ := item.PrimarySkill()
	p := min(0.95, max(0.05, 0.5+ability[skill]-item.Difficulty))
	correct := rng.Float64() < p

	if item.ExpectsOpenAnswer || len(item.Options) == 0 {
		text := "I would need to look this up."
		if correct {
			text = "Simulated answer to: " + item.Stem
		}
		resp.OpenAnswerText = &text
		return resp
	}

	var right, wrong []string
	for _, opt := range item.Options {
		if opt.IsCorrect {
			right = append(right, opt.ID)
		} else {
			wrong = append(wrong, opt.ID)
		}
	}
	pick := right
	if (!correct && len(wrong) > 0) || len(right) == 0 {
		pick = wrong
	}
	id := pick[rng.IntN(len(pick))]
	resp.SelectedOptionID = &id
	return resp
}

// practice nudges ability on every skill the item trains.
func practice(ability map[model.SkillID]float64, item model.AssessmentItem) {
	for _, ref := range item.SkillRefs {
		ability[ref.SkillID] = min(1, ability[ref.SkillID]+0.03*ref.Weight)
	}
}

// advance completes the next open activity of the first open module. A
// module whose activities are all closed is completed and the following
// open module starts.
func advance(plan *model.LearningPlan, userID string, at time.Time) (model.Event, bool) {
	for mi := range plan.Modules {
		m := &plan.Modules[mi]
		if !m.Status.Open() {
			continue
		}
		m.Status = model.StatusInProgress

		var done *model.Activity
		for ai := range m.Activities {
			if m.Activities[ai].Status.Open() {
				done = &m.Activities[ai]
				done.Status = model.StatusCompleted
				break
			}
		}

		closed := true
		for _, a := range m.Activities {
			if a.Status.Open() {
				closed = false
				break
			}
		}
		if closed {
			m.Status = model.StatusCompleted
			for next := mi + 1; next < len(plan.Modules); next++ {
				if plan.Modules[next].Status == model.StatusPending {
					plan.Modules[next].Status = model.StatusInProgress
					break
				}
			}
		}

		if done == nil {
			return model.Event{}, false
		}
		return model.Event{
			UserID:     userID,
			Type:       model.EventActivityCompleted,
			OccurredAt: at,
			EntityID:   string(done.ContentRef),
		}, true
	}
	return model.Event{}, false
}

func masteryBySkill(states []model.SkillState) map[model.SkillID]float64 {
	out := make(map[model.SkillID]float64, len(states))
	for _, s := range states {
		out[s.SkillID] = s.Mastery
	}
	return out
}
