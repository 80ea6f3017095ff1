package feedback

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

// MaxRemediation caps remediation suggestions per answer.
const MaxRemediation = 3

// ExplainContext carries what Explain needs beyond the item and grade.
type ExplainContext struct {
	// ImmediateCorrectionExpected allows revealing the correct statement,
	// e.g. in a timed quiz.
	ImmediateCorrectionExpected bool

	// Catalog supplies remediation candidates and skill names. May be nil.
	Catalog *catalog.Catalog

	// PriorMastery of the item's primary skill, used to tell slips from
	// gaps.
	PriorMastery *float64

	// JudgeExplanation is the verdict text of a judged open answer.
	JudgeExplanation string

	Strategy model.Strategy
}

// Explanation is the learner-facing result of Explain.
type Explanation struct {
	model.FeedbackMessage
	StrategyUsed model.Strategy `json:"strategyUsed"`
	FellBack     bool           `json:"fellBack"`
}

// Explain writes feedback for a graded response. Remediation is always
// chosen deterministically; under the generative strategy only the message
// text comes from the generator, and text that would reveal the answer
// without permission is discarded.
func (j *Judge) Explain(ctx context.Context, item model.AssessmentItem, graded model.GradedResponse, ec ExplainContext) Explanation {
	out := Explanation{
		FeedbackMessage: model.FeedbackMessage{
			IsCorrect:              graded.IsCorrect,
			Status:                 graded.Status,
			RemediationSuggestions: []model.ContentID{},
		},
		StrategyUsed: model.StrategyHeuristic,
	}
	if graded.Status == "" {
		out.Status = model.GradeGraded
	}

	if graded.Pending() {
		out.IsCorrect = false
		out.Message = "Your answer has been recorded and is pending review."
		return out
	}

	primary, _ := item.PrimarySkill()
	skillName := "this concept"
	if primary != "" {
		skillName = string(primary)
		if ec.Catalog != nil {
			skillName = ec.Catalog.SkillName(primary)
		}
	}

	chosen, hasChosen := chosenOption(item, graded.Response)
	correct := correctOption(item)

	if !graded.IsCorrect {
		out.Category = j.classify(graded, ec)
		out.RemediationSuggestions = remediation(ec.Catalog, primary, item.Difficulty)
	}

	out.Message = heuristicMessage(graded.IsCorrect, skillName, chosen, hasChosen, correct, out.Category, ec)

	if ec.Strategy != model.StrategyGenerative || j.gen == nil {
		return out
	}

	req := generator.ExplainRequest{
		Stem:      item.Stem,
		IsCorrect: graded.IsCorrect,
		SkillName: skillName,
		Category:  out.Category,
	}
	if hasChosen {
		req.ChosenStatement = chosen.Statement
		req.ChosenFeedback = chosen.Feedback
	} else if graded.OpenAnswerText != nil {
		req.ChosenStatement = *graded.OpenAnswerText
	}
	if ec.ImmediateCorrectionExpected && correct != nil {
		req.CorrectStatement = correct.Statement
	}

	text, err := j.gen.ExplainAnswer(ctx, req)
	switch {
	case err != nil:
		j.logger.Warn("explain fell back to heuristic", zap.String("item_id", item.ID), zap.Error(err))
		out.FellBack = true
	case strings.TrimSpace(text) == "":
		j.logger.Warn("explain returned empty text", zap.String("item_id", item.ID))
		out.FellBack = true
	case !graded.IsCorrect && !ec.ImmediateCorrectionExpected && reveals(text, correct):
		j.logger.Warn("discarding generated feedback that reveals the answer", zap.String("item_id", item.ID))
		out.FellBack = true
	default:
		out.Message = strings.TrimSpace(text)
		out.StrategyUsed = model.StrategyGenerative
	}
	return out
}

func (j *Judge) classify(graded model.GradedResponse, ec ExplainContext) model.ErrorCategory {
	in := &ClassifyInput{ResponseTimeMs: graded.ResponseTimeMs}
	if ec.PriorMastery != nil {
		in.PriorMastery, in.HasPrior = *ec.PriorMastery, true
	}
	cat, conf, rule := RunClassifiers(j.classifiers, in)
	if cat != model.CategoryNone {
		j.logger.Debug("classified wrong answer",
			zap.String("category", string(cat)),
			zap.Float64("confidence", conf),
			zap.String("rule", rule))
	}
	return cat
}

func chosenOption(item model.AssessmentItem, resp model.Response) (model.Option, bool) {
	if resp.SelectedOptionID == nil {
		return model.Option{}, false
	}
	return item.Option(*resp.SelectedOptionID)
}

func correctOption(item model.AssessmentItem) *model.Option {
	opts := item.CorrectOptions()
	if len(opts) != 1 {
		return nil
	}
	return &opts[0]
}

// remediation returns up to MaxRemediation entries for skill easier than
// difficulty, closest first.
func remediation(cat *catalog.Catalog, skill model.SkillID, difficulty float64) []model.ContentID {
	out := []model.ContentID{}
	if cat == nil || skill == "" {
		return out
	}
	for _, e := range cat.Below(skill, difficulty, nil) {
		if len(out) == MaxRemediation {
			break
		}
		out = append(out, e.ID)
	}
	return out
}

func reveals(text string, correct *model.Option) bool {
	if correct == nil {
		return false
	}
	stmt := strings.ToLower(strings.TrimSpace(correct.Statement))
	return stmt != "" && strings.Contains(strings.ToLower(text), stmt)
}

func heuristicMessage(isCorrect bool, skill string, chosen model.Option, hasChosen bool, correct *model.Option, cat model.ErrorCategory, ec ExplainContext) string {
	var b strings.Builder

	if isCorrect {
		fmt.Fprintf(&b, "Correct! You applied %s well.", skill)
		if hasChosen && chosen.Feedback != "" {
			b.WriteString(" " + chosen.Feedback)
		} else if ec.JudgeExplanation != "" {
			b.WriteString(" " + ec.JudgeExplanation)
		}
		return b.String()
	}

	switch {
	case hasChosen && chosen.Feedback != "":
		b.WriteString("Not quite. " + chosen.Feedback)
	case hasChosen:
		fmt.Fprintf(&b, "Not quite. %q does not hold here.", chosen.Statement)
	case ec.JudgeExplanation != "":
		b.WriteString("Not quite. " + ec.JudgeExplanation)
	default:
		b.WriteString("No answer was selected.")
	}

	switch cat {
	case model.CategorySpeedRush:
		b.WriteString(" You answered very quickly; slow down and read each option carefully.")
	case model.CategoryCareless:
		b.WriteString(" You usually get this right, so double-check your reasoning.")
	}

	if ec.ImmediateCorrectionExpected && correct != nil {
		fmt.Fprintf(&b, " The correct answer is: %s.", strings.TrimSuffix(correct.Statement, "."))
	} else {
		fmt.Fprintf(&b, " Think again about %s and try once more.", skill)
	}
	return b.String()
}
