// Package mastery folds graded responses into per-skill mastery estimates
// and classifies how those estimates are trending.
package mastery

import (
	"maps"
	"math"
	"time"

	"github.com/learnsmart/tutor/internal/model"
)

// Aggregator maintains mastery as an exponentially weighted moving
// estimate. It holds no learner state and is safe for concurrent use.
type Aggregator struct {
	cfg Config
	now func() time.Time
}

// NewAggregator creates an aggregator with the given config.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg, now: time.Now}
}

// Config returns the aggregator's config.
func (a *Aggregator) Config() Config { return a.cfg }

// Rate returns the learning rate after n prior graded responses.
func (a *Aggregator) Rate(n int) float64 {
	if n < 0 {
		n = 0
	}
	return a.cfg.BaseRate / math.Sqrt(float64(n+1))
}

// Update folds one graded response into the state of one skill. A nil prior
// starts from InitialMastery. Pending-review responses carry no evidence:
// ok is false and no state is produced.
func (a *Aggregator) Update(prior *model.SkillState, skill model.SkillID, graded model.GradedResponse, weight float64) (state model.SkillState, delta model.MasteryDelta, ok bool) {
	if graded.Pending() {
		return model.SkillState{}, model.MasteryDelta{}, false
	}

	before := a.cfg.InitialMastery
	attempts := 0
	if prior != nil {
		before = prior.Mastery
		attempts = prior.Attempts
	}

	outcome := clamp01(graded.Score)
	after := clamp01(before + clamp01(weight)*(outcome-before)*a.Rate(attempts))

	at := graded.GradedAt
	if at.IsZero() {
		at = a.now()
	}

	state = model.SkillState{
		SkillID:     skill,
		Mastery:     after,
		Attempts:    attempts + 1,
		LastUpdated: at,
	}
	delta = model.MasteryDelta{SkillID: skill, Before: before, After: after, At: at}
	return state, delta, true
}

// Apply folds a graded response into every skill the item is tagged with.
// The input map is not modified; the returned map holds the new states.
// Skills without a ref are carried over untouched.
func (a *Aggregator) Apply(states map[model.SkillID]model.SkillState, graded model.GradedResponse, refs []model.SkillRef) (map[model.SkillID]model.SkillState, []model.MasteryDelta) {
	out := maps.Clone(states)
	if out == nil {
		out = make(map[model.SkillID]model.SkillState)
	}

	var deltas []model.MasteryDelta
	for _, ref := range refs {
		var prior *model.SkillState
		if s, ok := out[ref.SkillID]; ok {
			prior = &s
		}
		next, delta, ok := a.Update(prior, ref.SkillID, graded, ref.Weight)
		if !ok {
			continue
		}
		out[ref.SkillID] = next
		deltas = append(deltas, delta)
	}
	return out, deltas
}

// Fold applies a sequence of graded responses in order.
func (a *Aggregator) Fold(states map[model.SkillID]model.SkillState, graded []model.GradedResponse, refsByItem map[string][]model.SkillRef) (map[model.SkillID]model.SkillState, []model.MasteryDelta) {
	var all []model.MasteryDelta
	for _, g := range graded {
		var deltas []model.MasteryDelta
		states, deltas = a.Apply(states, g, refsByItem[g.ItemID])
		all = append(all, deltas...)
	}
	if states == nil {
		states = make(map[model.SkillID]model.SkillState)
	}
	return states, all
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
