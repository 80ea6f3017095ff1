package feedback

import "github.com/learnsmart/tutor/internal/model"

// SpeedRushThresholdMs is the maximum response time (exclusive) for a
// wrong answer to be classified as a speed-rush. A zero response time means
// the client did not measure it and never matches.
const SpeedRushThresholdMs = 2000

// CarelessMasteryThreshold is the minimum prior mastery (exclusive) for a
// wrong answer to be classified as a careless slip.
const CarelessMasteryThreshold = 0.80

// ClassifyInput is what the classifiers see of a wrong answer.
type ClassifyInput struct {
	ResponseTimeMs int
	// PriorMastery is the learner's mastery of the item's primary skill
	// before this answer; HasPrior is false when no state exists.
	PriorMastery float64
	HasPrior     bool
}

// Classifier is a rule-based error classifier.
// Returns a category and confidence (0.0–1.0), or ("", 0) if the rule doesn't apply.
type Classifier interface {
	Name() string
	Classify(input *ClassifyInput) (model.ErrorCategory, float64)
}

// SpeedRushClassifier flags answers submitted too quickly.
type SpeedRushClassifier struct{}

func (c *SpeedRushClassifier) Name() string { return "speed-rush" }

func (c *SpeedRushClassifier) Classify(input *ClassifyInput) (model.ErrorCategory, float64) {
	if input.ResponseTimeMs > 0 && input.ResponseTimeMs < SpeedRushThresholdMs {
		return model.CategorySpeedRush, 0.9
	}
	return model.CategoryNone, 0
}

// CarelessClassifier flags wrong answers on skills the learner has largely
// mastered as slips rather than knowledge gaps.
type CarelessClassifier struct{}

func (c *CarelessClassifier) Name() string { return "careless" }

func (c *CarelessClassifier) Classify(input *ClassifyInput) (model.ErrorCategory, float64) {
	if input.HasPrior && input.PriorMastery > CarelessMasteryThreshold {
		return model.CategoryCareless, 0.8
	}
	return model.CategoryNone, 0
}

// DefaultClassifiers returns classifiers in priority order.
// A fast wrong answer is more likely a rush than a slip, even for a
// learner with high mastery, so speed-rush runs first.
func DefaultClassifiers() []Classifier {
	return []Classifier{
		&SpeedRushClassifier{},
		&CarelessClassifier{},
	}
}

// RunClassifiers executes classifiers in order and returns the first match.
func RunClassifiers(classifiers []Classifier, input *ClassifyInput) (model.ErrorCategory, float64, string) {
	for _, c := range classifiers {
		cat, conf := c.Classify(input)
		if cat != model.CategoryNone {
			return cat, conf, c.Name()
		}
	}
	return model.CategoryNone, 0, ""
}
