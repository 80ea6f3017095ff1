package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/learnsmart/tutor/internal/model"
)

// validate performs the structural checks on entries and skills and
// returns every problem found joined into one error.
func validate(entries []model.ContentEntry, skills []model.Skill) error {
	var errs []error

	skillSet := make(map[model.SkillID]bool, len(skills))
	for _, s := range skills {
		if skillSet[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate skill ID: %q", s.ID))
		}
		skillSet[s.ID] = true
	}

	for _, s := range skills {
		for _, p := range s.Prerequisites {
			if !skillSet[p] {
				errs = append(errs, &model.ErrInvalidReference{Kind: "skill", ID: string(p), Where: fmt.Sprintf("prerequisites of %q", s.ID)})
			}
		}
	}

	if cyc := cycleNodes(skills); len(cyc) > 0 {
		errs = append(errs, fmt.Errorf("cycle detected involving skills: %s", strings.Join(cyc, ", ")))
	}

	contentSet := make(map[model.ContentID]bool, len(entries))
	for _, e := range entries {
		if contentSet[e.ID] {
			errs = append(errs, fmt.Errorf("duplicate content ID: %q", e.ID))
		}
		contentSet[e.ID] = true

		if e.Difficulty < 0 || e.Difficulty > 1 {
			errs = append(errs, fmt.Errorf("content %q: difficulty %.2f outside [0,1]", e.ID, e.Difficulty))
		}
		if e.EstimatedMinutes <= 0 {
			errs = append(errs, fmt.Errorf("content %q: estimatedMinutes must be positive", e.ID))
		}
		for _, r := range e.SkillRefs {
			if !skillSet[r.SkillID] {
				errs = append(errs, &model.ErrInvalidReference{Kind: "skill", ID: string(r.SkillID), Where: fmt.Sprintf("content %q", e.ID)})
			}
			if r.Weight < 0 || r.Weight > 1 {
				errs = append(errs, fmt.Errorf("content %q: weight for %q outside [0,1]", e.ID, r.SkillID))
			}
		}
	}

	return errors.Join(errs...)
}

// cycleNodes returns the ids left with unresolved prerequisites after
// Kahn's algorithm, i.e. the skills on or behind a cycle.
func cycleNodes(skills []model.Skill) []string {
	inDegree := make(map[model.SkillID]int, len(skills))
	adj := make(map[model.SkillID][]model.SkillID)
	known := make(map[model.SkillID]bool, len(skills))
	for _, s := range skills {
		known[s.ID] = true
	}
	for _, s := range skills {
		for _, p := range s.Prerequisites {
			if !known[p] {
				continue
			}
			inDegree[s.ID]++
			adj[p] = append(adj[p], s.ID)
		}
	}

	var queue []model.SkillID
	for _, s := range skills {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, d := range adj[id] {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	if visited == len(skills) {
		return nil
	}

	var out []string
	for _, s := range skills {
		if inDegree[s.ID] > 0 {
			out = append(out, string(s.ID))
		}
	}
	return out
}
