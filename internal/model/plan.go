package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a module or activity.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
)

// Open reports whether the replanner may still revise something in this state.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInProgress
}

// Activity is one catalog entry scheduled inside a module.
type Activity struct {
	ID                       string      `json:"id"`
	ContentRef               ContentID   `json:"contentRef"`
	Type                     ContentType `json:"type,omitempty"`
	Status                   Status      `json:"status"`
	EstimatedMinutes         int         `json:"estimatedMinutes"`
	OverrideEstimatedMinutes *int        `json:"overrideEstimatedMinutes,omitempty"`
}

// Minutes returns the override when set, else the catalog estimate.
func (a Activity) Minutes() int {
	if a.OverrideEstimatedMinutes != nil {
		return *a.OverrideEstimatedMinutes
	}
	return a.EstimatedMinutes
}

// Module is an ordered group of activities.
type Module struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Position       int        `json:"position"`
	Status         Status     `json:"status"`
	TargetSkills   []SkillID  `json:"targetSkills,omitempty"`
	EstimatedHours float64    `json:"estimatedHours"`
	Activities     []Activity `json:"activities"`
}

// Minutes sums the activity durations.
func (m Module) Minutes() int {
	total := 0
	for _, a := range m.Activities {
		total += a.Minutes()
	}
	return total
}

// Clone returns a deep copy.
func (m Module) Clone() Module {
	out := m
	out.TargetSkills = append([]SkillID(nil), m.TargetSkills...)
	out.Activities = make([]Activity, len(m.Activities))
	for i, a := range m.Activities {
		out.Activities[i] = a
		if a.OverrideEstimatedMinutes != nil {
			v := *a.OverrideEstimatedMinutes
			out.Activities[i].OverrideEstimatedMinutes = &v
		}
	}
	return out
}

// LearningPlan is an ordered module sequence for one learner.
type LearningPlan struct {
	PlanID      string    `json:"planId"`
	UserID      string    `json:"userId"`
	Version     int       `json:"version"`
	GeneratedBy Strategy  `json:"generatedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Modules     []Module  `json:"modules"`
}

// Clone returns a deep copy so revisions never alias the caller's plan.
func (p LearningPlan) Clone() LearningPlan {
	out := p
	out.Modules = make([]Module, len(p.Modules))
	for i, m := range p.Modules {
		out.Modules[i] = m.Clone()
	}
	return out
}

// ContentRefs lists every activity reference in module order.
func (p LearningPlan) ContentRefs() []ContentID {
	var refs []ContentID
	for _, m := range p.Modules {
		for _, a := range m.Activities {
			refs = append(refs, a.ContentRef)
		}
	}
	return refs
}

// ModuleIndex returns the index of the module with id, or -1.
func (p LearningPlan) ModuleIndex(id string) int {
	for i, m := range p.Modules {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ChangeAction names a structural revision made by the replanner.
type ChangeAction string

const (
	ActionSkipped                ChangeAction = "skipped"
	ActionChallengeAdded         ChangeAction = "challenge_added"
	ActionRemediationAdded       ChangeAction = "remediation_added"
	ActionRemediationUnavailable ChangeAction = "remediation_unavailable"
	ActionReordered              ChangeAction = "reordered"
	ActionNoChange               ChangeAction = "no_change"
)

// Change is one (module, action) pair of a replan diff.
type Change struct {
	ModuleID string       `json:"moduleId"`
	Action   ChangeAction `json:"action"`
	Detail   string       `json:"detail,omitempty"`
}

// ChangeSummary is the ordered diff produced by a replan.
type ChangeSummary []Change

// Structural reports whether any change altered the plan.
func (cs ChangeSummary) Structural() bool {
	for _, c := range cs {
		if c.Action != ActionNoChange && c.Action != ActionRemediationUnavailable {
			return true
		}
	}
	return false
}

func (cs ChangeSummary) String() string {
	if len(cs) == 0 {
		return "no changes"
	}
	lines := make([]string, 0, len(cs))
	for _, c := range cs {
		line := fmt.Sprintf("%s: %s", c.ModuleID, c.Action)
		if c.Detail != "" {
			line += " (" + c.Detail + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "; ")
}
