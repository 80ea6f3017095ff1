package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_QueueOrder(t *testing.T) {
	mock := NewMockProvider().
		JSON(`{"isCorrect":true}`).
		Fail(&ErrRateLimit{Err: errors.New("429")})
	mock.AddResponse(MockResponse{Content: json.RawMessage(`{"b":2}`)})

	ctx := context.Background()
	resp, err := mock.Generate(ctx, UserPrompt("grader", "first", nil, 64))
	require.NoError(t, err)
	assert.JSONEq(t, `{"isCorrect":true}`, string(resp.Content))
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, "end", resp.StopReason)

	_, err = mock.Generate(ctx, UserPrompt("grader", "second", nil, 64))
	assert.Equal(t, KindRateLimited, Kind(err))

	resp, err = mock.Generate(ctx, UserPrompt("grader", "third", nil, 64))
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(resp.Content))

	_, err = mock.Generate(ctx, Request{})
	assert.Equal(t, KindUnavailable, Kind(err), "empty queue")

	assert.Equal(t, 4, mock.CallCount())
	assert.Equal(t, "third", mock.Calls[2].Messages[0].Content)
	assert.Equal(t, "grader", mock.Calls[0].System)
}

func TestMockProvider_LastRequest(t *testing.T) {
	mock := NewMockProvider()
	assert.Equal(t, Request{}, mock.LastRequest())

	schema := &Schema{Name: "verdict"}
	_, _ = mock.Generate(context.Background(), UserPrompt("s", "u", schema, 128))
	last := mock.LastRequest()
	assert.Same(t, schema, last.Schema)
	assert.Equal(t, 128, last.MaxTokens)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "u"}}, last.Messages)
}

func TestMockProvider_CancelledContext(t *testing.T) {
	mock := NewMockProvider().JSON(`{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, mock.CallCount())
}

func TestPurpose(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", PurposeFrom(ctx))
	assert.Equal(t, "unknown", PurposeFrom(WithPurpose(ctx, "")))
	assert.Equal(t, "judge-open-answer", PurposeFrom(WithPurpose(ctx, "judge-open-answer")))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic without key", Config{Provider: "anthropic"}, true},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}}, false},
		{"openai without key", Config{Provider: "openai"}, true},
		{"openai with key", Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}}, false},
		{"gemini without key", Config{Provider: "gemini"}, true},
		{"openrouter without key", Config{Provider: "openrouter"}, true},
		{"mock needs no key", Config{Provider: "mock"}, false},
		{"unknown provider", Config{Provider: "llama"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TUTOR_LLM_PROVIDER", "openai")
	t.Setenv("TUTOR_OPENAI_API_KEY", "sk-env")
	t.Setenv("TUTOR_OPENAI_MODEL", "gpt-nano")
	t.Setenv("TUTOR_LLM_TIMEOUT", "5s")

	cfg := ConfigFromEnv()
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-nano", cfg.OpenAI.Model)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultConfig().Retry, cfg.Retry)
	assert.NoError(t, cfg.Validate())
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	_, ok := DiscoverConfig()
	assert.False(t, ok)

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENROUTER_API_KEY", "sk-or")
	cfg, ok := DiscoverConfig()
	require.True(t, ok)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "sk-ant", cfg.Anthropic.APIKey)
}

func TestLookupCost(t *testing.T) {
	c := LookupCost("gpt-4o-mini")
	require.NotNil(t, c)
	assert.InDelta(t, 0.75, c.Cost(1_000_000, 1_000_000), 1e-9)

	assert.NotNil(t, LookupCost("google/gemini-2.0-flash-exp"), "vendor-prefixed router id")
	assert.NotNil(t, LookupCost(resolveModel("anthropic", "claude-haiku")), "every alias target is priced")
	assert.Nil(t, LookupCost("no-such-model"))
}
