package replan

import (
	"errors"
	"fmt"
	"slices"

	"github.com/learnsmart/tutor/internal/model"
)

// errTouchesCompleted marks an edit that would alter a completed module.
var errTouchesCompleted = errors.New("revision touches a completed module")

// editor applies structural edits to a cloned plan. Every edit preserves
// completed modules: their content, status, index and position.
type editor struct {
	plan    *model.LearningPlan
	newID   func() string
	changes model.ChangeSummary
}

func (e *editor) note(moduleID string, action model.ChangeAction, detail string) {
	e.changes = append(e.changes, model.Change{ModuleID: moduleID, Action: action, Detail: detail})
}

func (e *editor) module(id string) (int, *model.Module, error) {
	i := e.plan.ModuleIndex(id)
	if i < 0 {
		return -1, nil, &model.ErrInvalidReference{Kind: "module", ID: id, Where: "plan " + e.plan.PlanID}
	}
	m := &e.plan.Modules[i]
	if m.Status == model.StatusCompleted {
		return i, m, fmt.Errorf("module %s: %w", id, errTouchesCompleted)
	}
	return i, m, nil
}

// openRefs reports content already scheduled and not yet done.
func (e *editor) openRefs() map[model.ContentID]bool {
	refs := make(map[model.ContentID]bool)
	for _, m := range e.plan.Modules {
		for _, a := range m.Activities {
			if a.Status.Open() {
				refs[a.ContentRef] = true
			}
		}
	}
	return refs
}

// allRefs reports every content id anywhere in the plan.
func (e *editor) allRefs() map[model.ContentID]bool {
	refs := make(map[model.ContentID]bool)
	for _, ref := range e.plan.ContentRefs() {
		refs[ref] = true
	}
	return refs
}

func (e *editor) activity(entry model.ContentEntry) model.Activity {
	return model.Activity{
		ID:               e.newID(),
		ContentRef:       entry.ID,
		Type:             entry.Type,
		Status:           model.StatusPending,
		EstimatedMinutes: entry.EstimatedMinutes,
	}
}

// skip marks an open module and its open activities skipped.
func (e *editor) skip(id, detail string) error {
	_, m, err := e.module(id)
	if err != nil {
		return err
	}
	if m.Status == model.StatusSkipped {
		return nil
	}
	m.Status = model.StatusSkipped
	for k := range m.Activities {
		if m.Activities[k].Status.Open() {
			m.Activities[k].Status = model.StatusSkipped
		}
	}
	e.note(id, model.ActionSkipped, detail)
	return nil
}

// appendActivity adds entry to the end of module id.
func (e *editor) appendActivity(id string, entry model.ContentEntry, action model.ChangeAction, detail string) error {
	_, m, err := e.module(id)
	if err != nil {
		return err
	}
	m.Activities = append(m.Activities, e.activity(entry))
	m.EstimatedHours = hours(m.Minutes())
	e.note(id, action, detail)
	return nil
}

// insertRemediation places entry in a new module right after module id.
// When a completed module follows, inserting would shift it, so the
// activity is appended to module id instead.
func (e *editor) insertRemediation(id string, entry model.ContentEntry, title string, skill model.SkillID, detail string) error {
	i, m, err := e.module(id)
	if err != nil {
		return err
	}
	for _, later := range e.plan.Modules[i+1:] {
		if later.Status == model.StatusCompleted {
			return e.appendActivity(id, entry, model.ActionRemediationAdded, detail+", appended to current module")
		}
	}

	mod := model.Module{
		ID:           e.newID(),
		Title:        title,
		Position:     m.Position + 1,
		Status:       model.StatusPending,
		TargetSkills: []model.SkillID{skill},
		Activities:   []model.Activity{e.activity(entry)},
	}
	mod.EstimatedHours = hours(mod.Minutes())

	for k := i + 1; k < len(e.plan.Modules); k++ {
		e.plan.Modules[k].Position++
	}
	e.plan.Modules = slices.Insert(e.plan.Modules, i+1, mod)
	e.note(mod.ID, model.ActionRemediationAdded, fmt.Sprintf("%s, after %s", detail, id))
	return nil
}

// move places module id immediately before module before. Every module in
// the affected range must be open or skipped; their positions are
// redistributed so the rest of the plan keeps its numbering.
func (e *editor) move(id, before string) error {
	from, _, err := e.module(id)
	if err != nil {
		return err
	}
	to, _, err := e.module(before)
	if err != nil {
		return err
	}
	if from == to || from == to-1 {
		return nil
	}

	lo, hi := min(from, to), max(from, to)
	positions := make([]int, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		if e.plan.Modules[k].Status == model.StatusCompleted {
			return fmt.Errorf("reorder across module %s: %w", e.plan.Modules[k].ID, errTouchesCompleted)
		}
		positions = append(positions, e.plan.Modules[k].Position)
	}

	mod := e.plan.Modules[from]
	mods := slices.Delete(slices.Clone(e.plan.Modules), from, from+1)
	if from < to {
		to--
	}
	mods = slices.Insert(mods, to, mod)
	for k := lo; k <= hi; k++ {
		mods[k].Position = positions[k-lo]
	}
	e.plan.Modules = mods
	e.note(id, model.ActionReordered, "moved before "+before)
	return nil
}
