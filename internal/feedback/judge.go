// Package feedback judges learner responses and writes the feedback they
// see. Correctness of closed-form items is decided locally and never
// delegated; open answers go to the content generator or to review.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/model"
)

// Judge implements evaluation, resolution and explanation. It is safe for
// concurrent use.
type Judge struct {
	gen         generator.ContentGenerator
	classifiers []Classifier
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Judge. gen may be nil when only the heuristic strategy is
// used.
func New(gen generator.ContentGenerator, logger *zap.Logger) *Judge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judge{
		gen:         gen,
		classifiers: DefaultClassifiers(),
		logger:      logger,
		now:         time.Now,
	}
}

// Evaluate decides correctness of a closed-form response. Open-answer
// items and closed-form items without exactly one correct option fail with
// *model.ErrUndeterminedCorrectness. A null selection is incorrect.
func (j *Judge) Evaluate(item model.AssessmentItem, resp model.Response) (model.GradedResponse, error) {
	if resp.ItemID != item.ID {
		return model.GradedResponse{}, &model.ErrInvalidReference{Kind: "item", ID: resp.ItemID, Where: "response to item " + item.ID}
	}
	if !item.IsClosedForm() {
		return model.GradedResponse{}, &model.ErrUndeterminedCorrectness{ItemID: item.ID, Reason: "open answer requires judgment"}
	}
	correct := item.CorrectOptions()
	if len(correct) != 1 {
		return model.GradedResponse{}, &model.ErrUndeterminedCorrectness{
			ItemID: item.ID,
			Reason: fmt.Sprintf("closed-form item has %d correct options", len(correct)),
		}
	}

	if resp.SelectedOptionID == nil {
		return j.graded(resp, false, 0), nil
	}
	if _, ok := item.Option(*resp.SelectedOptionID); !ok {
		return model.GradedResponse{}, &model.ErrInvalidReference{Kind: "option", ID: *resp.SelectedOptionID, Where: "item " + item.ID}
	}
	isCorrect := *resp.SelectedOptionID == correct[0].ID
	return j.graded(resp, isCorrect, boolScore(isCorrect)), nil
}

func (j *Judge) graded(resp model.Response, isCorrect bool, score float64) model.GradedResponse {
	return model.GradedResponse{
		Response:  resp,
		IsCorrect: isCorrect,
		Score:     score,
		Status:    model.GradeGraded,
		GradedAt:  j.now(),
	}
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Graded model.GradedResponse
	// Explanation is the generator's verdict explanation for judged open
	// answers.
	Explanation  string
	StrategyUsed model.Strategy
	FellBack     bool
}

// Resolve grades a response, taking an explicit path when Evaluate cannot
// decide. Under the generative strategy an open answer is judged by the
// content generator and its verdict accepted; otherwise, or when the
// generator fails, the response is marked pending review. Reference errors
// from Evaluate are returned unchanged.
func (j *Judge) Resolve(ctx context.Context, item model.AssessmentItem, resp model.Response, strategy model.Strategy) (Resolution, error) {
	graded, err := j.Evaluate(item, resp)
	if err == nil {
		return Resolution{Graded: graded, StrategyUsed: model.StrategyHeuristic}, nil
	}
	if model.Kind(err) != model.KindUndeterminedCorrectness {
		return Resolution{}, err
	}

	pending := Resolution{
		Graded: model.GradedResponse{
			Response: resp,
			Status:   model.GradePendingReview,
			GradedAt: j.now(),
		},
		StrategyUsed: model.StrategyHeuristic,
	}

	// Only open answers can be judged; a closed-form item with a broken
	// answer key waits for a reviewer.
	if item.IsClosedForm() {
		j.logger.Warn("closed-form item needs review", zap.String("item_id", item.ID), zap.Error(err))
		return pending, nil
	}

	answer := ""
	if resp.OpenAnswerText != nil {
		answer = strings.TrimSpace(*resp.OpenAnswerText)
	}
	if answer == "" {
		return Resolution{Graded: j.graded(resp, false, 0), StrategyUsed: model.StrategyHeuristic}, nil
	}

	if strategy != model.StrategyGenerative || j.gen == nil {
		return pending, nil
	}

	verdict, err := j.gen.JudgeOpenAnswer(ctx, generator.JudgeRequest{
		ItemID: item.ID,
		Stem:   item.Stem,
		Answer: answer,
		Skills: skillNames(item.SkillRefs),
	})
	if err != nil {
		j.logger.Warn("open answer judgment failed, marking for review",
			zap.String("item_id", item.ID), zap.Error(err))
		pending.FellBack = true
		return pending, nil
	}

	score := boolScore(verdict.IsCorrect)
	if verdict.Score != nil {
		score = min(max(*verdict.Score, 0), 1)
	}
	return Resolution{
		Graded:       j.graded(resp, verdict.IsCorrect, score),
		Explanation:  verdict.Explanation,
		StrategyUsed: model.StrategyGenerative,
	}, nil
}

func skillNames(refs []model.SkillRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = string(r.SkillID)
	}
	return out
}
