package replan

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

// generative applies the generator's proposed revisions through the same
// editor as the heuristic. A revision that would alter a completed module
// or is otherwise unusable rejects the whole proposal as a generator
// failure; unknown content or modules are reference errors.
func (r *Replanner) generative(ctx context.Context, req Request, trends []moduleTrend) (Result, error) {
	var entries []model.ContentEntry
	if req.Catalog != nil {
		entries = req.Catalog.Entries()
	}
	revisions, err := r.gen.ReviseModules(ctx, generator.ReviseRequest{
		Plan:        req.Plan,
		Trends:      exportTrends(trends),
		SkillStates: req.SkillStates,
		Entries:     entries,
	})
	if err != nil {
		return Result{}, err
	}

	plan, ed := r.begin(req)
	for i, rev := range revisions {
		if err := r.apply(ed, req, rev); err != nil {
			if errors.Is(err, errTouchesCompleted) || errors.Is(err, errUnusable) {
				return Result{}, &model.ErrGeneratorUnavailable{
					Op:  generator.OpRevise,
					Err: fmt.Errorf("revision %d (%s %s): %w", i+1, rev.Action, rev.ModuleID, err),
				}
			}
			return Result{}, err
		}
	}

	return Result{
		Plan:         *plan,
		Changes:      ed.changes,
		Trends:       exportTrends(trends),
		StrategyUsed: model.StrategyGenerative,
	}, nil
}

var errUnusable = errors.New("unusable revision")

func (r *Replanner) apply(ed *editor, req Request, rev generator.Revision) error {
	where := fmt.Sprintf("%s revision of module %s", rev.Action, rev.ModuleID)
	detail := rev.Note

	switch rev.Action {
	case generator.ReviseSkip:
		return ed.skip(rev.ModuleID, detail)

	case generator.ReviseChallenge, generator.ReviseRemediate:
		if req.Catalog == nil {
			return fmt.Errorf("%s without a catalog: %w", where, errUnusable)
		}
		entry, err := req.Catalog.Resolve(rev.ContentRef, where)
		if err != nil {
			return err
		}
		if rev.Action == generator.ReviseChallenge {
			return ed.appendActivity(rev.ModuleID, entry, model.ActionChallengeAdded, joinDetail(string(entry.ID), detail))
		}
		skill := primarySkill(entry)
		return ed.insertRemediation(rev.ModuleID, entry, "Review: "+req.Catalog.SkillName(skill), skill, joinDetail(string(entry.ID), detail))

	case generator.ReviseReorder:
		if rev.BeforeModuleID == "" {
			return fmt.Errorf("%s has no target: %w", where, errUnusable)
		}
		return ed.move(rev.ModuleID, rev.BeforeModuleID)

	case generator.ReviseNote:
		if _, _, err := ed.module(rev.ModuleID); err != nil {
			return err
		}
		ed.note(rev.ModuleID, model.ActionNoChange, detail)
		return nil

	default:
		return fmt.Errorf("unknown action %q: %w", rev.Action, errUnusable)
	}
}

func primarySkill(e model.ContentEntry) model.SkillID {
	var best model.SkillRef
	for i, r := range e.SkillRefs {
		if i == 0 || r.Weight > best.Weight {
			best = r
		}
	}
	return best.SkillID
}

func joinDetail(a, b string) string {
	if b == "" {
		return a
	}
	return a + ": " + b
}
