package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/learnsmart/tutor/internal/llm"
	"github.com/learnsmart/tutor/internal/model"
)

// LLMConfig holds generation settings shared by every LLMGenerator call.
type LLMConfig struct {
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		MaxTokens:   2048,
		Temperature: 0.3,
	}
}

// LLMGenerator implements ContentGenerator over an llm.Provider. It does not
// validate references against the catalog; the decision components do that.
type LLMGenerator struct {
	provider llm.Provider
	cfg      LLMConfig
	newID    func() string
}

// NewLLMGenerator creates a generator backed by provider.
func NewLLMGenerator(provider llm.Provider, cfg LLMConfig) *LLMGenerator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultLLMConfig().MaxTokens
	}
	return &LLMGenerator{provider: provider, cfg: cfg, newID: uuid.NewString}
}

// call sends one structured request and decodes the validated JSON into out.
func (g *LLMGenerator) call(ctx context.Context, purpose, system, user string, schema *llm.Schema, out any) error {
	ctx = llm.WithPurpose(ctx, purpose)

	req := llm.UserPrompt(system, user, schema, g.cfg.MaxTokens)
	req.Temperature = g.cfg.Temperature

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", purpose, err)
	}
	if err := json.Unmarshal(resp.Content, out); err != nil {
		return fmt.Errorf("parse %s response: %w", purpose, err)
	}
	return nil
}

func (g *LLMGenerator) GeneratePlan(ctx context.Context, req PlanRequest) (GeneratedPlan, error) {
	var out GeneratedPlan
	if err := g.call(ctx, "plan-proposal", planSystemPrompt, buildPlanUserMessage(req), PlanSchema, &out); err != nil {
		return GeneratedPlan{}, err
	}
	return out, nil
}

type revisionsOutput struct {
	Revisions []Revision `json:"revisions"`
}

func (g *LLMGenerator) ReviseModules(ctx context.Context, req ReviseRequest) ([]Revision, error) {
	var out revisionsOutput
	if err := g.call(ctx, "plan-revisions", reviseSystemPrompt, buildReviseUserMessage(req), RevisionSchema, &out); err != nil {
		return nil, err
	}
	return out.Revisions, nil
}

type itemOutput struct {
	Stem       string   `json:"stem"`
	Difficulty float64  `json:"difficulty"`
	SkillIDs   []string `json:"skillIds"`
	Options    []struct {
		Statement string `json:"statement"`
		IsCorrect bool   `json:"isCorrect"`
		Feedback  string `json:"feedback"`
	} `json:"options"`
}

// GenerateItem returns a closed-form item. Skill refs get descending
// weights in the order the model listed them.
func (g *LLMGenerator) GenerateItem(ctx context.Context, req ItemRequest) (model.AssessmentItem, error) {
	var out itemOutput
	if err := g.call(ctx, "generate-item", itemSystemPrompt, buildItemUserMessage(req), ItemSchema, &out); err != nil {
		return model.AssessmentItem{}, err
	}

	item := model.AssessmentItem{
		ID:         g.newID(),
		Stem:       strings.TrimSpace(out.Stem),
		Difficulty: out.Difficulty,
	}
	for i, id := range out.SkillIDs {
		weight := 1.0 / float64(i+1)
		item.SkillRefs = append(item.SkillRefs, model.SkillRef{SkillID: model.SkillID(id), Weight: weight})
	}
	for i, o := range out.Options {
		item.Options = append(item.Options, model.Option{
			ID:        fmt.Sprintf("o%d", i+1),
			Statement: o.Statement,
			IsCorrect: o.IsCorrect,
			Feedback:  o.Feedback,
		})
	}
	return item, nil
}

func (g *LLMGenerator) JudgeOpenAnswer(ctx context.Context, req JudgeRequest) (Verdict, error) {
	var out Verdict
	if err := g.call(ctx, "judge-open-answer", judgeSystemPrompt, buildJudgeUserMessage(req), VerdictSchema, &out); err != nil {
		return Verdict{}, err
	}
	return out, nil
}

type explanationOutput struct {
	Message string `json:"message"`
}

func (g *LLMGenerator) ExplainAnswer(ctx context.Context, req ExplainRequest) (string, error) {
	var out explanationOutput
	if err := g.call(ctx, "explain-answer", explainSystemPrompt, buildExplainUserMessage(req), ExplanationSchema, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Message), nil
}

type lessonsOutput struct {
	Lessons []model.Lesson `json:"lessons"`
}

// GenerateLessons returns at most req.N lessons.
func (g *LLMGenerator) GenerateLessons(ctx context.Context, req LessonRequest) ([]model.Lesson, error) {
	var out lessonsOutput
	if err := g.call(ctx, "generate-lessons", lessonsSystemPrompt, buildLessonsUserMessage(req), LessonsSchema, &out); err != nil {
		return nil, err
	}
	if req.N > 0 && len(out.Lessons) > req.N {
		out.Lessons = out.Lessons[:req.N]
	}
	return out.Lessons, nil
}
