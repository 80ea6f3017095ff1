package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/learnsmart/tutor/internal/store"
)

func TestLoggingProvider_PersistsEvents(t *testing.T) {
	s, err := store.Open("file::memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mock := NewMockProvider().
		JSON(`{"isCorrect":true,"explanation":"ok"}`).
		Fail(&ErrRateLimit{Err: errors.New("429")})
	p := WithLogging(mock, s.EventRepo(), nil)

	ctx := WithPurpose(context.Background(), "judge-open-answer")
	req := UserPrompt("You grade answers.", "Is a closure a function?", nil, 128)
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := p.Generate(ctx, req); err == nil {
		t.Fatal("second call: expected error")
	}

	events, err := s.EventRepo().QueryLLMEvents(ctx, store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	failed, ok := events[0], events[1]
	if failed.Success || !strings.Contains(failed.ErrorMessage, "rate limited") {
		t.Errorf("failed event = %+v", failed)
	}
	if !ok.Success || ok.Provider != "mock" || ok.Purpose != "judge-open-answer" {
		t.Errorf("ok event = %+v", ok)
	}
	if !strings.Contains(ok.RequestBody, "[system]\nYou grade answers.") {
		t.Errorf("request body = %q", ok.RequestBody)
	}
}

func TestLoggingProvider_NilRepo(t *testing.T) {
	p := WithLogging(NewMockProvider().JSON(`{}`), nil, nil)
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "mock" {
		t.Fatalf("Name() = %q", p.Name())
	}
}

// blockingProvider waits for cancellation.
type blockingProvider struct{ *MockProvider }

func (b blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout_BoundsCall(t *testing.T) {
	p := WithTimeout(blockingProvider{NewMockProvider()}, 10*time.Millisecond)

	_, err := p.Generate(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if WithTimeout(NewMockProvider(), 0) == nil {
		t.Fatal("zero timeout should return the provider unchanged")
	}
}

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"}, nil, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID() = %q", p.ModelID())
	}

	// An unscripted mock is always unavailable.
	_, err = p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %T (%v)", err, err)
	}
}

func TestNewProvider_RejectsMissingKey(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Provider: "openrouter"}, nil, nil); err == nil {
		t.Fatal("expected error for missing openrouter key")
	}
}
