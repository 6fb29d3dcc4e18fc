package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"rca-copilot/internal/llm"
	"rca-copilot/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type classifierFunc func(ctx context.Context, query string) (models.RoutingDecision, error)

func (f classifierFunc) Classify(ctx context.Context, query string) (models.RoutingDecision, error) {
	return f(ctx, query)
}

func TestRouteFailsOpenOnError(t *testing.T) {
	r := New(classifierFunc(func(context.Context, string) (models.RoutingDecision, error) {
		return models.RoutingDecision{}, errors.New("model unavailable")
	}), testLogger())

	got := r.Route(context.Background(), "anything")
	if got != models.AllAgents() {
		t.Fatalf("expected all agents on classifier error, got %+v", got)
	}
}

func TestRouteFailsOpenOnEmptyDecision(t *testing.T) {
	r := New(classifierFunc(func(context.Context, string) (models.RoutingDecision, error) {
		return models.RoutingDecision{}, nil
	}), testLogger())

	got := r.Route(context.Background(), "gibberish with no domain words")
	if got != models.AllAgents() {
		t.Fatalf("expected all agents on empty decision, got %+v", got)
	}
}

func TestRoutePassesThroughDecision(t *testing.T) {
	want := models.RoutingDecision{Sensor: true}
	r := New(classifierFunc(func(context.Context, string) (models.RoutingDecision, error) {
		return want, nil
	}), testLogger())

	if got := r.Route(context.Background(), "q"); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestKeywordClassifierSensorOnly(t *testing.T) {
	decision, err := KeywordClassifier{}.Classify(context.Background(), "Show critical vibration alerts for MCH_003")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := models.RoutingDecision{Sensor: true}
	if decision != want {
		t.Fatalf("expected sensor only, got %+v", decision)
	}
}

func TestKeywordClassifierMultipleDomains(t *testing.T) {
	decision, err := KeywordClassifier{}.Classify(context.Background(), "correlate operator incidents with maintenance repairs and pressure readings")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := models.AllAgents()
	if decision != want {
		t.Fatalf("expected all domains, got %+v", decision)
	}
}

func TestKeywordClassifierNoTriggers(t *testing.T) {
	decision, err := KeywordClassifier{}.Classify(context.Background(), "tell me about machine seventeen")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !decision.Empty() {
		t.Fatalf("expected empty decision, got %+v", decision)
	}
}

func TestLLMClassifierParsesReply(t *testing.T) {
	fake := llm.GenerateFunc(func(_ context.Context, prompt string, _ llm.Options) (string, error) {
		if !strings.Contains(prompt, "vibration on MCH_003") {
			t.Errorf("query missing from prompt")
		}
		return "Looking at the query:\nSENSOR_AGENT: YES\nOPERATOR_AGENT: NO\nMAINTENANCE_AGENT: YES\n", nil
	})

	c := NewLLMClassifier(fake, llm.Options{Temperature: 0.3, MaxTokens: 500})
	decision, err := c.Classify(context.Background(), "vibration on MCH_003")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := models.RoutingDecision{Sensor: true, Maintenance: true}
	if decision != want {
		t.Fatalf("expected %+v, got %+v", want, decision)
	}
}

func TestLLMClassifierLowercaseReply(t *testing.T) {
	fake := llm.GenerateFunc(func(context.Context, string, llm.Options) (string, error) {
		return "sensor_agent: yes\noperator_agent: no\nmaintenance_agent: no", nil
	})

	c := NewLLMClassifier(fake, llm.Options{})
	decision, err := c.Classify(context.Background(), "q")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !decision.Sensor || decision.Operator || decision.Maintenance {
		t.Fatalf("case-insensitive parse failed: %+v", decision)
	}
}

func TestLLMClassifierPropagatesError(t *testing.T) {
	fake := llm.GenerateFunc(func(context.Context, string, llm.Options) (string, error) {
		return "", errors.New("boom")
	})

	c := NewLLMClassifier(fake, llm.Options{})
	if _, err := c.Classify(context.Background(), "q"); err == nil {
		t.Fatal("expected error from failing model")
	}
}
