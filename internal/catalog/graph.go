package catalog

import (
	"sort"

	"github.com/learnsmart/tutor/internal/model"
)

// topoIndex assigns each skill its position in a topological order of the
// prerequisite graph (Kahn's algorithm, ties broken by id). Assumes the
// graph was validated acyclic.
func topoIndex(skills []model.Skill) map[model.SkillID]int {
	inDegree := make(map[model.SkillID]int, len(skills))
	dependents := make(map[model.SkillID][]model.SkillID)
	for _, s := range skills {
		inDegree[s.ID] = len(s.Prerequisites)
		for _, p := range s.Prerequisites {
			dependents[p] = append(dependents[p], s.ID)
		}
	}

	var queue []model.SkillID
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sortIDs(queue)

	index := make(map[model.SkillID]int, len(skills))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		index[id] = len(index)

		deps := append([]model.SkillID(nil), dependents[id]...)
		sortIDs(deps)
		for _, d := range deps {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	return index
}

// TopoIndex returns the position of skill in the prerequisite order, or -1.
func (c *Catalog) TopoIndex(skill model.SkillID) int {
	if i, ok := c.topoIndex[skill]; ok {
		return i
	}
	return -1
}

// Requires reports whether skill transitively depends on prereq.
func (c *Catalog) Requires(skill, prereq model.SkillID) bool {
	seen := make(map[model.SkillID]bool)
	stack := []model.SkillID{skill}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s, ok := c.Skill(id)
		if !ok {
			continue
		}
		for _, p := range s.Prerequisites {
			if p == prereq {
				return true
			}
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return false
}

// OrderSkills orders a subset of skills so that every skill comes after its
// transitive prerequisites within the subset. Among ready skills the lowest
// priority value goes first, then the lowest id.
func (c *Catalog) OrderSkills(subset []model.SkillID, priority func(model.SkillID) float64) []model.SkillID {
	inDegree := make(map[model.SkillID]int, len(subset))
	dependents := make(map[model.SkillID][]model.SkillID)
	for _, a := range subset {
		for _, b := range subset {
			if a != b && c.Requires(a, b) {
				inDegree[a]++
				dependents[b] = append(dependents[b], a)
			}
		}
	}

	less := func(a, b model.SkillID) bool {
		pa, pb := priority(a), priority(b)
		if pa != pb {
			return pa < pb
		}
		return a < b
	}

	var ready []model.SkillID
	for _, id := range subset {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]model.SkillID, 0, len(subset))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, d := range dependents[id] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return out
}

func sortIDs(ids []model.SkillID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
