// Package model defines the value objects exchanged between the decision
// components and the typed errors they fail with.
package model

import "time"

// SkillID identifies a skill in the caller-supplied skill list.
type SkillID string

// ContentID identifies a catalog entry.
type ContentID string

// ContentType is the kind of catalog entry.
type ContentType string

const (
	ContentLesson   ContentType = "lesson"
	ContentPractice ContentType = "practice"
)

// SkillRef tags content or an item with a skill and how strongly it
// exercises that skill.
type SkillRef struct {
	SkillID SkillID `json:"skillId" yaml:"skillId"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// ContentEntry is one piece of catalog content.
type ContentEntry struct {
	ID               ContentID   `json:"id" yaml:"id"`
	Title            string      `json:"title,omitempty" yaml:"title"`
	SkillRefs        []SkillRef  `json:"skillRefs" yaml:"skillRefs"`
	Difficulty       float64     `json:"difficulty" yaml:"difficulty"`
	EstimatedMinutes int         `json:"estimatedMinutes" yaml:"estimatedMinutes"`
	Type             ContentType `json:"type" yaml:"type"`
}

// HasSkill reports whether the entry is tagged with id.
func (c ContentEntry) HasSkill(id SkillID) bool {
	_, ok := c.WeightFor(id)
	return ok
}

// WeightFor returns the weight of the ref for id.
func (c ContentEntry) WeightFor(id SkillID) (float64, bool) {
	for _, r := range c.SkillRefs {
		if r.SkillID == id {
			return r.Weight, true
		}
	}
	return 0, false
}

// Skill is a node of the prerequisite graph.
type Skill struct {
	ID            SkillID   `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Domain        string    `json:"domain,omitempty" yaml:"domain"`
	Prerequisites []SkillID `json:"prerequisites,omitempty" yaml:"prerequisites"`
}

// DisplayName falls back to the id when no name was supplied.
func (s Skill) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.ID)
}

// SkillState is a learner's mastery estimate for one skill.
type SkillState struct {
	SkillID     SkillID   `json:"skillId"`
	Mastery     float64   `json:"mastery"`
	Attempts    int       `json:"attempts"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// MasteryDelta records a single mastery transition.
type MasteryDelta struct {
	SkillID SkillID   `json:"skillId"`
	Before  float64   `json:"before"`
	After   float64   `json:"after"`
	At      time.Time `json:"at"`
}

// Change returns After - Before.
func (d MasteryDelta) Change() float64 {
	return d.After - d.Before
}

// Goal is a learner objective expressed as target skills.
type Goal struct {
	ID           string    `json:"id,omitempty" yaml:"id"`
	Title        string    `json:"title,omitempty" yaml:"title"`
	TargetSkills []SkillID `json:"targetSkills" yaml:"targetSkills"`
}

// Profile carries learner attributes that shape generation.
type Profile struct {
	UserID string `json:"userId" yaml:"userId"`
	Locale string `json:"locale,omitempty" yaml:"locale"`
	Level  string `json:"level,omitempty" yaml:"level"`
}

// Constraints bound the plan's weekly workload.
type Constraints struct {
	HoursPerWeek float64 `json:"hoursPerWeek" yaml:"hoursPerWeek"`
}

// Lesson is generated micro-content.
type Lesson struct {
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Body             string      `json:"body"`
	EstimatedMinutes int         `json:"estimatedMinutes"`
	Difficulty       float64     `json:"difficulty"`
	Type             ContentType `json:"type"`
}
