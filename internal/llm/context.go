package llm

import "context"

type purposeKey struct{}

// WithPurpose tags calls made with ctx, e.g. "plan-proposal" or
// "judge-open-answer". The tag labels request events, metrics and spans.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the tag set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if p, _ := ctx.Value(purposeKey{}).(string); p != "" {
		return p
	}
	return "unknown"
}
