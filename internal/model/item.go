package model

import "time"

// Option is one choice of a closed-form item.
type Option struct {
	ID        string `json:"id" yaml:"id"`
	Statement string `json:"statement" yaml:"statement"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
	Feedback  string `json:"feedback,omitempty" yaml:"feedback"`
}

// AssessmentItem is a question issued to a learner.
type AssessmentItem struct {
	ID                string     `json:"id" yaml:"id"`
	Stem              string     `json:"stem" yaml:"stem"`
	Options           []Option   `json:"options,omitempty" yaml:"options"`
	ExpectsOpenAnswer bool       `json:"expectsOpenAnswer,omitempty" yaml:"expectsOpenAnswer"`
	Difficulty        float64    `json:"difficulty" yaml:"difficulty"`
	SkillRefs         []SkillRef `json:"skillRefs" yaml:"skillRefs"`
}

// IsClosedForm reports whether the item is answered by picking an option.
func (it AssessmentItem) IsClosedForm() bool {
	return !it.ExpectsOpenAnswer && len(it.Options) > 0
}

// Option returns the option with the given id.
func (it AssessmentItem) Option(id string) (Option, bool) {
	for _, o := range it.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// CorrectOptions returns every option flagged correct.
func (it AssessmentItem) CorrectOptions() []Option {
	var out []Option
	for _, o := range it.Options {
		if o.IsCorrect {
			out = append(out, o)
		}
	}
	return out
}

// PrimarySkill returns the highest-weight skill ref. Earlier refs win ties.
func (it AssessmentItem) PrimarySkill() (SkillID, bool) {
	if len(it.SkillRefs) == 0 {
		return "", false
	}
	best := it.SkillRefs[0]
	for _, r := range it.SkillRefs[1:] {
		if r.Weight > best.Weight {
			best = r
		}
	}
	return best.SkillID, true
}

// Response is a learner's answer to an item. Exactly one of
// SelectedOptionID and OpenAnswerText is set for a well-formed response.
type Response struct {
	ItemID           string  `json:"itemId"`
	SelectedOptionID *string `json:"selectedOptionId,omitempty"`
	OpenAnswerText   *string `json:"openAnswerText,omitempty"`
	ResponseTimeMs   int     `json:"responseTimeMs"`
}

// GradeStatus distinguishes judged responses from those awaiting review.
type GradeStatus string

const (
	GradeGraded        GradeStatus = "graded"
	GradePendingReview GradeStatus = "pending_review"
)

// GradedResponse is the durable record of a judged response.
type GradedResponse struct {
	Response
	IsCorrect bool        `json:"isCorrect"`
	Score     float64     `json:"score"`
	Status    GradeStatus `json:"status"`
	GradedAt  time.Time   `json:"gradedAt"`
}

// Pending reports whether the response still needs a verdict.
func (g GradedResponse) Pending() bool {
	return g.Status == GradePendingReview
}

// HistoryEntry is one past answer in a learner's session.
type HistoryEntry struct {
	ItemID     string    `json:"itemId"`
	IsCorrect  bool      `json:"isCorrect"`
	AnsweredAt time.Time `json:"answeredAt,omitempty"`
}

// ErrorCategory classifies a wrong answer for feedback tone.
type ErrorCategory string

const (
	CategoryNone      ErrorCategory = ""
	CategoryCareless  ErrorCategory = "careless"
	CategorySpeedRush ErrorCategory = "speed-rush"
)

// FeedbackMessage is what the learner sees after answering.
type FeedbackMessage struct {
	IsCorrect              bool          `json:"isCorrect"`
	Status                 GradeStatus   `json:"status"`
	Message                string        `json:"message"`
	Category               ErrorCategory `json:"category,omitempty"`
	RemediationSuggestions []ContentID   `json:"remediationSuggestions"`
}
