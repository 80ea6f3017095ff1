package mastery

import (
	"sort"

	"github.com/learnsmart/tutor/internal/model"
)

// Band is a coarse label for a mastery value, used for display.
type Band string

const (
	BandNew        Band = "new"
	BandLearning   Band = "learning"
	BandProficient Band = "proficient"
	BandMastered   Band = "mastered"
)

// BandOf labels a skill state. A nil state is new.
func (c Config) BandOf(s *model.SkillState) Band {
	switch {
	case s == nil:
		return BandNew
	case s.Mastery >= c.MasteredThreshold:
		return BandMastered
	case s.Mastery >= c.ProficientThreshold:
		return BandProficient
	default:
		return BandLearning
	}
}

// Transition records a band change caused by an update.
type Transition struct {
	SkillID model.SkillID `json:"skillId"`
	From    Band          `json:"from"`
	To      Band          `json:"to"`
}

// Transitions compares two state maps and returns the band changes, sorted
// by skill id.
func (c Config) Transitions(before, after map[model.SkillID]model.SkillState) []Transition {
	var out []Transition
	for id, s := range after {
		var prior *model.SkillState
		if p, ok := before[id]; ok {
			prior = &p
		}
		from, to := c.BandOf(prior), c.BandOf(&s)
		if from != to {
			out = append(out, Transition{SkillID: id, From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SkillID < out[j].SkillID })
	return out
}
