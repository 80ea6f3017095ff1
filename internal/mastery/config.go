package mastery

// Config holds the aggregator's tuning.
type Config struct {
	// BaseRate is the learning rate applied to a skill's first response.
	// Later responses use BaseRate / sqrt(n+1).
	BaseRate float64 `mapstructure:"base_rate"`

	// InitialMastery is the prior assumed for a skill with no state.
	InitialMastery float64 `mapstructure:"initial_mastery"`

	// TrendWindow is how many recent deltas trend classification reads.
	TrendWindow int `mapstructure:"trend_window"`

	// TrendThreshold is the net change beyond which a trend counts as
	// improving or declining.
	TrendThreshold float64 `mapstructure:"trend_threshold"`

	ProficientThreshold float64 `mapstructure:"proficient_threshold"`
	MasteredThreshold   float64 `mapstructure:"mastered_threshold"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseRate:            0.4,
		InitialMastery:      0.5,
		TrendWindow:         5,
		TrendThreshold:      0.1,
		ProficientThreshold: 0.6,
		MasteredThreshold:   0.85,
	}
}
