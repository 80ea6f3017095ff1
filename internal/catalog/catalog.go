// Package catalog indexes the caller-supplied content catalog and skill
// list. Every id a decision component emits is resolved through it.
package catalog

import (
	"slices"
	"sort"

	"github.com/learnsmart/tutor/internal/model"
)

// Catalog is an immutable, indexed view over content entries and skills.
// Safe for concurrent use.
type Catalog struct {
	entries   []model.ContentEntry
	byID      map[model.ContentID]int
	bySkill   map[model.SkillID][]model.ContentEntry
	skills    []model.Skill
	skillByID map[model.SkillID]int
	topoIndex map[model.SkillID]int
}

// New validates and indexes entries and skills. When skills is empty the
// skill list is derived from the entries' skill refs, with no prerequisites.
func New(entries []model.ContentEntry, skills []model.Skill) (*Catalog, error) {
	if len(skills) == 0 {
		skills = deriveSkills(entries)
	}
	if err := validate(entries, skills); err != nil {
		return nil, err
	}

	c := &Catalog{
		entries:   slices.Clone(entries),
		byID:      make(map[model.ContentID]int, len(entries)),
		bySkill:   make(map[model.SkillID][]model.ContentEntry),
		skills:    slices.Clone(skills),
		skillByID: make(map[model.SkillID]int, len(skills)),
	}
	for i, e := range c.entries {
		c.byID[e.ID] = i
		for _, r := range e.SkillRefs {
			c.bySkill[r.SkillID] = append(c.bySkill[r.SkillID], e)
		}
	}
	for id := range c.bySkill {
		sortByDifficulty(c.bySkill[id])
	}
	for i, s := range c.skills {
		c.skillByID[s.ID] = i
	}
	c.topoIndex = topoIndex(c.skills)
	return c, nil
}

// MustNew is New for fixtures known to be valid. It panics on error.
func MustNew(entries []model.ContentEntry, skills []model.Skill) *Catalog {
	c, err := New(entries, skills)
	if err != nil {
		panic(err)
	}
	return c
}

func deriveSkills(entries []model.ContentEntry) []model.Skill {
	seen := make(map[model.SkillID]bool)
	var out []model.Skill
	for _, e := range entries {
		for _, r := range e.SkillRefs {
			if !seen[r.SkillID] {
				seen[r.SkillID] = true
				out = append(out, model.Skill{ID: r.SkillID})
			}
		}
	}
	return out
}

func sortByDifficulty(entries []model.ContentEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Difficulty != entries[j].Difficulty {
			return entries[i].Difficulty < entries[j].Difficulty
		}
		return entries[i].ID < entries[j].ID
	})
}

// Len returns the number of content entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns all entries in supplied order.
func (c *Catalog) Entries() []model.ContentEntry {
	return slices.Clone(c.entries)
}

// Entry returns the entry with id.
func (c *Catalog) Entry(id model.ContentID) (model.ContentEntry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.ContentEntry{}, false
	}
	return c.entries[i], true
}

// Has reports whether id resolves.
func (c *Catalog) Has(id model.ContentID) bool {
	_, ok := c.byID[id]
	return ok
}

// Resolve returns the entry for id or an *model.ErrInvalidReference.
func (c *Catalog) Resolve(id model.ContentID, where string) (model.ContentEntry, error) {
	e, ok := c.Entry(id)
	if !ok {
		return model.ContentEntry{}, &model.ErrInvalidReference{Kind: "content", ID: string(id), Where: where}
	}
	return e, nil
}

// ForSkill returns the entries tagged with skill, by ascending difficulty.
func (c *Catalog) ForSkill(skill model.SkillID) []model.ContentEntry {
	return slices.Clone(c.bySkill[skill])
}

// Skills returns the skill list.
func (c *Catalog) Skills() []model.Skill {
	return slices.Clone(c.skills)
}

// Skill returns the skill with id.
func (c *Catalog) Skill(id model.SkillID) (model.Skill, bool) {
	i, ok := c.skillByID[id]
	if !ok {
		return model.Skill{}, false
	}
	return c.skills[i], true
}

// HasSkill reports whether id is a known skill.
func (c *Catalog) HasSkill(id model.SkillID) bool {
	_, ok := c.skillByID[id]
	return ok
}

// SkillName returns the display name of id, or id itself when unknown.
func (c *Catalog) SkillName(id model.SkillID) string {
	if s, ok := c.Skill(id); ok {
		return s.DisplayName()
	}
	return string(id)
}

// Below returns entries for skill strictly easier than difficulty, closest
// first. Entries rejected by skip are left out.
func (c *Catalog) Below(skill model.SkillID, difficulty float64, skip func(model.ContentEntry) bool) []model.ContentEntry {
	var out []model.ContentEntry
	for _, e := range c.bySkill[skill] {
		if e.Difficulty >= difficulty {
			continue
		}
		if skip != nil && skip(e) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Difficulty != out[j].Difficulty {
			return out[i].Difficulty > out[j].Difficulty
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Above returns entries for skill strictly harder than difficulty, closest
// first. Entries rejected by skip are left out.
func (c *Catalog) Above(skill model.SkillID, difficulty float64, skip func(model.ContentEntry) bool) []model.ContentEntry {
	var out []model.ContentEntry
	for _, e := range c.bySkill[skill] {
		if e.Difficulty <= difficulty {
			continue
		}
		if skip != nil && skip(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}
