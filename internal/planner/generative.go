package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

var errEmptyProposal = errors.New("proposal contains no usable modules")

// generative asks the content generator for modules and resolves every id
// it returns against the catalog.
func (p *Planner) generative(ctx context.Context, req Request, matched []assigned, goalSkills []model.SkillID) (Result, error) {
	entries := make([]model.ContentEntry, len(matched))
	for i, a := range matched {
		entries[i] = a.entry
	}

	proposal, err := p.gen.GeneratePlan(ctx, generator.PlanRequest{
		Profile:     req.Profile,
		Goals:       req.Goals,
		Constraints: req.Constraints,
		Entries:     entries,
		Skills:      req.Catalog.Skills(),
	})
	if err != nil {
		return Result{}, err
	}

	seen := make(map[model.ContentID]bool)
	var modules []model.Module
	for i, gm := range proposal.Modules {
		where := fmt.Sprintf("generated module %d", i+1)

		var picked []model.ContentEntry
		for _, ref := range gm.ContentRefs {
			e, err := req.Catalog.Resolve(ref, where)
			if err != nil {
				return Result{}, err
			}
			if seen[ref] {
				continue
			}
			seen[ref] = true
			picked = append(picked, e)
		}
		if len(picked) == 0 {
			continue
		}

		for _, s := range gm.TargetSkills {
			if !req.Catalog.HasSkill(s) {
				return Result{}, &model.ErrInvalidReference{Kind: "skill", ID: string(s), Where: where}
			}
		}
		skills := gm.TargetSkills
		if len(skills) == 0 {
			skills = coveredGoalSkills(picked, goalSkills)
		}

		title := strings.TrimSpace(gm.Title)
		if title == "" && len(skills) > 0 {
			title = req.Catalog.SkillName(skills[0])
		}
		m := p.newModule(title, skills, picked)
		m.Position = len(modules) + 1
		modules = append(modules, m)
	}

	if len(modules) == 0 {
		return Result{}, &model.ErrGeneratorUnavailable{Op: generator.OpPlan, Err: errEmptyProposal}
	}

	log := "generative: " + strings.TrimSpace(proposal.Rationale)
	return Result{
		Plan:         p.newPlan(req.Profile.UserID, model.StrategyGenerative, modules),
		Log:          strings.TrimSuffix(log, " "),
		StrategyUsed: model.StrategyGenerative,
	}, nil
}

func coveredGoalSkills(entries []model.ContentEntry, goalSkills []model.SkillID) []model.SkillID {
	var out []model.SkillID
	for _, s := range goalSkills {
		for _, e := range entries {
			if e.HasSkill(s) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
