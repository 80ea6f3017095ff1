package store

import (
	"context"
	"time"

	"github.com/learnsmart/tutor/internal/model"
)

// QueryOpts configures event queries with filtering and pagination.
// Results are newest first.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo records and reads LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns nil, nil when id does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}

// Decision is one audited engine operation.
type Decision struct {
	ID          int
	Sequence    int64
	Timestamp   time.Time
	Op          string
	Strategy    model.Strategy
	FellBack    bool
	Outcome     string // "ok" or a model error kind
	UserID      string
	PlanID      string
	PlanVersion int
	Summary     string
	LatencyMs   int64
}

// DecisionQuery filters decision records. Empty fields match everything.
type DecisionQuery struct {
	QueryOpts
	Op     string
	UserID string
	PlanID string
}

// DecisionRepo is the decision audit log.
type DecisionRepo interface {
	AppendDecision(ctx context.Context, d Decision) error
	QueryDecisions(ctx context.Context, q DecisionQuery) ([]Decision, error)
}

// LearnerEventRepo stores the tracking events replanning consumes.
type LearnerEventRepo interface {
	AppendEvents(ctx context.Context, events ...model.Event) error

	// RecentEvents returns up to limit events for userID in chronological
	// order (oldest first).
	RecentEvents(ctx context.Context, userID string, limit int) ([]model.Event, error)
}

// PlanRepo stores the current snapshot of each plan.
type PlanRepo interface {
	// Save stores plan. A plan with Version 1 must not exist yet; any other
	// version must replace exactly Version-1, otherwise ErrVersionConflict.
	Save(ctx context.Context, plan model.LearningPlan) error

	// Get returns nil, nil when the plan does not exist.
	Get(ctx context.Context, planID string) (*model.LearningPlan, error)
}
