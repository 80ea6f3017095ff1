// Package itemselect picks the next assessment item for a learner. The
// heuristic favours pool items whose difficulty is closest to the learner's
// mastery of the item's skills; the generative strategy synthesizes an item
// when the pool is empty.
package itemselect

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

// Config tunes selection.
type Config struct {
	// RecentWindow is k: items answered correctly in the last k history
	// entries are not re-selected while an alternative exists.
	RecentWindow int `mapstructure:"recent_window"`

	// DefaultMastery is assumed for skills without a state.
	DefaultMastery float64 `mapstructure:"default_mastery"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{RecentWindow: 5, DefaultMastery: 0.5}
}

const scoreEpsilon = 1e-9

// Request is the input to SelectNext.
type Request struct {
	Domain         string
	MasteryBySkill map[model.SkillID]float64
	// KnownSkills bounds the skills a synthesized item may reference,
	// together with the keys of MasteryBySkill.
	KnownSkills   []model.Skill
	Pool          []model.AssessmentItem
	RecentHistory []model.HistoryEntry
	Strategy      model.Strategy
	Locale        string
}

// Selection is the chosen item and why.
type Selection struct {
	Item         model.AssessmentItem `json:"item"`
	Rationale    string               `json:"rationale"`
	StrategyUsed model.Strategy       `json:"strategyUsed"`
	Generated    bool                 `json:"generated"`
}

// Selector implements item selection. It is safe for concurrent use.
type Selector struct {
	gen    generator.ContentGenerator
	cfg    Config
	logger *zap.Logger
	newID  func() string
}

// New creates a Selector. gen may be nil when only the heuristic strategy
// is used.
func New(gen generator.ContentGenerator, cfg Config, logger *zap.Logger) *Selector {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultConfig().RecentWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{gen: gen, cfg: cfg, logger: logger, newID: uuid.NewString}
}

// SelectNext picks from the pool when it is non-empty, whatever the
// strategy. An empty pool is only recoverable under the generative strategy.
func (s *Selector) SelectNext(ctx context.Context, req Request) (Selection, error) {
	if len(req.Pool) > 0 {
		return s.pick(req), nil
	}
	if req.Strategy != model.StrategyGenerative {
		return Selection{}, &model.ErrNoCandidateItem{Domain: req.Domain, Reason: "item pool is empty"}
	}
	if s.gen == nil {
		return Selection{}, &model.ErrNoCandidateItem{Domain: req.Domain, Reason: "no content generator configured"}
	}
	return s.synthesize(ctx, req)
}

type candidate struct {
	index    int
	item     model.AssessmentItem
	target   float64
	score    float64
	exposure int
	excluded bool
}

// better reports whether a ranks before b: higher score, then lower
// exposure, then earlier pool position.
func better(a, b candidate) bool {
	if math.Abs(a.score-b.score) > scoreEpsilon {
		return a.score > b.score
	}
	if a.exposure != b.exposure {
		return a.exposure < b.exposure
	}
	return a.index < b.index
}

func (s *Selector) pick(req Request) Selection {
	recentCorrect, exposure := s.recent(req.RecentHistory)

	var best, bestExcluded *candidate
	for i, item := range req.Pool {
		c := candidate{
			index:    i,
			item:     item,
			target:   s.targetMastery(item.SkillRefs, req.MasteryBySkill),
			exposure: exposure[item.ID],
			excluded: recentCorrect[item.ID],
		}
		c.score = 1 - math.Abs(item.Difficulty-c.target)

		slot := &best
		if c.excluded {
			slot = &bestExcluded
		}
		if *slot == nil || better(c, **slot) {
			cc := c
			*slot = &cc
		}
	}

	chosen := best
	if chosen == nil {
		chosen = bestExcluded
	}
	return Selection{
		Item:         chosen.item,
		Rationale:    rationale(*chosen),
		StrategyUsed: model.StrategyHeuristic,
	}
}

// recent returns the items answered correctly within the last k entries
// and the exposure count of every item within that window.
func (s *Selector) recent(history []model.HistoryEntry) (map[string]bool, map[string]int) {
	start := max(len(history)-s.cfg.RecentWindow, 0)
	correct := make(map[string]bool)
	exposure := make(map[string]int)
	for _, h := range history[start:] {
		exposure[h.ItemID]++
		if h.IsCorrect {
			correct[h.ItemID] = true
		}
	}
	return correct, exposure
}

func (s *Selector) targetMastery(refs []model.SkillRef, mastery map[model.SkillID]float64) float64 {
	if len(refs) == 0 {
		return s.cfg.DefaultMastery
	}
	sum := 0.0
	for _, r := range refs {
		m, ok := mastery[r.SkillID]
		if !ok {
			m = s.cfg.DefaultMastery
		}
		sum += m
	}
	return sum / float64(len(refs))
}

func (s *Selector) meanMastery(mastery map[model.SkillID]float64) float64 {
	if len(mastery) == 0 {
		return s.cfg.DefaultMastery
	}
	sum := 0.0
	for _, m := range mastery {
		sum += m
	}
	return sum / float64(len(mastery))
}

func rationale(c candidate) string {
	base := fmt.Sprintf("selected: difficulty %.2f close to mastery %.2f", c.item.Difficulty, c.target)
	switch {
	case c.excluded:
		return base + ", recently answered correctly but no alternative in pool"
	case c.exposure > 0:
		return fmt.Sprintf("%s, seen %d time(s) recently", base, c.exposure)
	default:
		return base + ", not recently seen"
	}
}

// allowedSkills returns the skills a synthesized item may reference.
// Skills of the requested domain are offered to the generator; any known
// skill is accepted back.
func allowedSkills(req Request) (offer []model.Skill, known map[model.SkillID]bool) {
	known = make(map[model.SkillID]bool)
	for _, sk := range req.KnownSkills {
		known[sk.ID] = true
		if req.Domain == "" || sk.Domain == "" || sk.Domain == req.Domain {
			offer = append(offer, sk)
		}
	}
	for id := range req.MasteryBySkill {
		if !known[id] {
			known[id] = true
			offer = append(offer, model.Skill{ID: id})
		}
	}
	return offer, known
}

func (s *Selector) synthesize(ctx context.Context, req Request) (Selection, error) {
	target := s.meanMastery(req.MasteryBySkill)
	offer, known := allowedSkills(req)

	item, err := s.gen.GenerateItem(ctx, generator.ItemRequest{
		Domain:        req.Domain,
		TargetMastery: target,
		Skills:        offer,
		Locale:        req.Locale,
	})
	if err != nil {
		s.logger.Warn("item synthesis failed", zap.String("domain", req.Domain), zap.Error(err))
		return Selection{}, &model.ErrNoCandidateItem{Domain: req.Domain, Reason: "item synthesis failed", Err: err}
	}

	if reason := malformed(item); reason != "" {
		s.logger.Warn("discarding malformed synthesized item", zap.String("domain", req.Domain), zap.String("reason", reason))
		return Selection{}, &model.ErrNoCandidateItem{Domain: req.Domain, Reason: "synthesized item " + reason}
	}
	for _, r := range item.SkillRefs {
		if !known[r.SkillID] {
			return Selection{}, &model.ErrInvalidReference{Kind: "skill", ID: string(r.SkillID), Where: "synthesized item"}
		}
	}

	item = s.normalize(item)
	return Selection{
		Item:         item,
		Rationale:    fmt.Sprintf("generated: difficulty %.2f targeting mastery %.2f, pool empty", item.Difficulty, target),
		StrategyUsed: model.StrategyGenerative,
		Generated:    true,
	}, nil
}

func malformed(item model.AssessmentItem) string {
	switch {
	case item.Stem == "":
		return "has no stem"
	case len(item.SkillRefs) == 0:
		return "has no skill refs"
	case item.ExpectsOpenAnswer:
		return ""
	case len(item.CorrectOptions()) != 1:
		return fmt.Sprintf("has %d correct options", len(item.CorrectOptions()))
	}
	seen := make(map[string]bool, len(item.Options))
	for _, o := range item.Options {
		if o.ID == "" {
			continue
		}
		if seen[o.ID] {
			return fmt.Sprintf("repeats option id %q", o.ID)
		}
		seen[o.ID] = true
	}
	return ""
}

// normalize fills missing ids and clamps difficulty into [0,1].
func (s *Selector) normalize(item model.AssessmentItem) model.AssessmentItem {
	if item.ID == "" {
		item.ID = s.newID()
	}
	item.Difficulty = min(max(item.Difficulty, 0), 1)
	used := make(map[string]bool, len(item.Options))
	for _, o := range item.Options {
		used[o.ID] = true
	}
	opts := make([]model.Option, len(item.Options))
	next := 1
	for i, o := range item.Options {
		for o.ID == "" {
			if id := fmt.Sprintf("o%d", next); !used[id] {
				o.ID = id
				used[id] = true
			}
			next++
		}
		opts[i] = o
	}
	item.Options = opts
	return item
}
