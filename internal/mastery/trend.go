package mastery

import (
	"sort"

	"github.com/learnsmart/tutor/internal/model"
)

// Trend is the direction of recent mastery change.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStagnant  Trend = "stagnant"
	TrendDeclining Trend = "declining"
)

// ClassifyTrend sums the net change over the last window deltas (in the
// order given) and compares it with threshold. No evidence is stagnant.
func ClassifyTrend(deltas []model.MasteryDelta, window int, threshold float64) (Trend, float64) {
	if window > 0 && len(deltas) > window {
		deltas = deltas[len(deltas)-window:]
	}
	net := 0.0
	for _, d := range deltas {
		net += d.Change()
	}
	switch {
	case len(deltas) == 0:
		return TrendStagnant, 0
	case net > threshold:
		return TrendImproving, net
	case net < -threshold:
		return TrendDeclining, net
	default:
		return TrendStagnant, net
	}
}

// Trend classifies deltas with the aggregator's window and threshold.
func (a *Aggregator) Trend(deltas []model.MasteryDelta) (Trend, float64) {
	return ClassifyTrend(deltas, a.cfg.TrendWindow, a.cfg.TrendThreshold)
}

// DeltasFromEvents extracts mastery deltas from tracking events, ordered
// chronologically. Events of other types are ignored.
func DeltasFromEvents(events []model.Event) []model.MasteryDelta {
	var out []model.MasteryDelta
	for _, e := range events {
		if d, ok := e.Delta(); ok {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// ForSkills keeps the deltas whose skill is in skills, preserving order.
func ForSkills(deltas []model.MasteryDelta, skills []model.SkillID) []model.MasteryDelta {
	want := make(map[model.SkillID]bool, len(skills))
	for _, s := range skills {
		want[s] = true
	}
	var out []model.MasteryDelta
	for _, d := range deltas {
		if want[d.SkillID] {
			out = append(out, d)
		}
	}
	return out
}
