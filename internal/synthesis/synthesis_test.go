package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rca-copilot/internal/llm"
	"rca-copilot/internal/models"
)

func TestSynthesizeRendersAllSections(t *testing.T) {
	var captured string
	fake := llm.GenerateFunc(func(_ context.Context, prompt string, _ llm.Options) (string, error) {
		captured = prompt
		return "the report", nil
	})

	reports := map[string]models.AgentReport{
		models.DomainSensor: {
			Domain:    models.DomainSensor,
			Succeeded: true,
			Narrative: "vibration trending upward on MCH_003",
			Documents: []models.Document{{"machine_id": "MCH_003", "sensor_type": "vibration"}},
		},
		models.DomainMaintenance: {
			Domain: models.DomainMaintenance,
			Err:    "Maintenance Agent retrieval: index offline",
		},
	}

	out, err := New(fake, llm.Options{}).Synthesize(context.Background(), "why does MCH_003 vibrate", reports)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if out != "the report" {
		t.Fatalf("unexpected report %q", out)
	}

	if !strings.Contains(captured, "vibration trending upward on MCH_003") {
		t.Fatalf("sensor narrative missing from prompt:\n%s", captured)
	}
	if !strings.Contains(captured, `"machine_id":"MCH_003"`) {
		t.Fatalf("sensor documents missing from prompt:\n%s", captured)
	}
	if !strings.Contains(captured, "No data from this domain: Maintenance Agent retrieval: index offline") {
		t.Fatalf("failed agent error missing from prompt:\n%s", captured)
	}
	if !strings.Contains(captured, "No operator analysis available.") {
		t.Fatalf("unselected agent placeholder missing from prompt:\n%s", captured)
	}
}

func TestSynthesizeEmptyReports(t *testing.T) {
	var captured string
	fake := llm.GenerateFunc(func(_ context.Context, prompt string, _ llm.Options) (string, error) {
		captured = prompt
		return "nothing to report", nil
	})

	if _, err := New(fake, llm.Options{}).Synthesize(context.Background(), "q", nil); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	for _, placeholder := range []string{
		"No sensor analysis available.",
		"No operator analysis available.",
		"No maintenance analysis available.",
	} {
		if !strings.Contains(captured, placeholder) {
			t.Fatalf("missing placeholder %q in prompt:\n%s", placeholder, captured)
		}
	}
}

func TestSynthesizePropagatesModelError(t *testing.T) {
	fake := llm.GenerateFunc(func(context.Context, string, llm.Options) (string, error) {
		return "", errors.New("model down")
	})

	if _, err := New(fake, llm.Options{}).Synthesize(context.Background(), "q", nil); err == nil {
		t.Fatal("expected error when the model fails")
	}
}

func TestSynthesizeFallsBackToSummary(t *testing.T) {
	var captured string
	fake := llm.GenerateFunc(func(_ context.Context, prompt string, _ llm.Options) (string, error) {
		captured = prompt
		return "ok", nil
	})

	reports := map[string]models.AgentReport{
		models.DomainOperator: {
			Domain:    models.DomainOperator,
			Succeeded: true,
			Summary:   "Found 3 operator report(s)",
		},
	}
	if _, err := New(fake, llm.Options{}).Synthesize(context.Background(), "q", reports); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !strings.Contains(captured, "Found 3 operator report(s)") {
		t.Fatalf("summary fallback missing:\n%s", captured)
	}
}
