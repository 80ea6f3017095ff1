package model

import "fmt"

// Strategy selects the decision implementation used for one call.
type Strategy string

const (
	StrategyHeuristic  Strategy = "heuristic"
	StrategyGenerative Strategy = "generative"
)

// ParseStrategy maps a wire value to a Strategy. Empty means fallback.
func ParseStrategy(s string, fallback Strategy) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return fallback, nil
	case StrategyHeuristic, StrategyGenerative:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}
