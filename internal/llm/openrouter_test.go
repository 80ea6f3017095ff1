package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenRouterProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OpenRouterConfig
		wantErr bool
	}{
		{name: "default base url", cfg: OpenRouterConfig{APIKey: "sk-or-test", Model: "google/gemini-2.0-flash-exp"}},
		{name: "vendor prefixed model", cfg: OpenRouterConfig{APIKey: "sk-or-test", Model: "anthropic/claude-3-haiku"}},
		{name: "custom base url", cfg: OpenRouterConfig{APIKey: "sk-or-test", Model: "meta-llama/llama-3-8b", BaseURL: "https://router.internal/v1"}},
		{name: "missing key", cfg: OpenRouterConfig{Model: "google/gemini-2.0-flash-exp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOpenRouterProvider(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "openrouter", p.Name())
			// Router model ids are passed through without friendly-name mapping.
			assert.Equal(t, tt.cfg.Model, p.ModelID())
		})
	}
}
