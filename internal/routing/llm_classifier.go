package routing

import (
	"context"
	"fmt"
	"strings"

	"rca-copilot/internal/llm"
	"rca-copilot/internal/models"
)

const routingPromptTemplate = `You are a routing agent for a root cause analysis system for industrial equipment.
Analyze the user's query and determine which specialized agents should be invoked.

Available Agents:
1. **Sensor Data Agent**: Handles queries about time-series sensor data (temperature, vibration, pressure), anomalies, and real-time measurements
2. **Operator Agent**: Handles queries about operator incident reports, observations, and initial actions taken
3. **Maintenance Agent**: Handles queries about maintenance history, repairs, component failures, and technician actions

User Query: %q

Based on the query, determine which agents are relevant. Respond in this exact format:
SENSOR_AGENT: YES/NO
OPERATOR_AGENT: YES/NO
MAINTENANCE_AGENT: YES/NO

Rules:
- If the query mentions sensors, readings, temperature, vibration, pressure, or real-time data, answer SENSOR_AGENT: YES
- If the query mentions operators, reports, incidents, observations, answer OPERATOR_AGENT: YES
- If the query mentions maintenance, repairs, components, failures, technicians, answer MAINTENANCE_AGENT: YES
- For general root cause or comprehensive analysis, invoke ALL agents
- At least one agent must be selected

Your response:`

// LLMClassifier asks the language model which domains a query concerns. The
// model's reply is parsed by substring, so surrounding prose is harmless.
type LLMClassifier struct {
	llm  llm.Client
	opts llm.Options
}

// NewLLMClassifier builds the classifier with routing-specific call options.
func NewLLMClassifier(client llm.Client, opts llm.Options) *LLMClassifier {
	return &LLMClassifier{llm: client, opts: opts}
}

// Classify renders the routing prompt and parses the model's answer.
func (c *LLMClassifier) Classify(ctx context.Context, query string) (models.RoutingDecision, error) {
	prompt := fmt.Sprintf(routingPromptTemplate, query)
	out, err := c.llm.Generate(ctx, prompt, c.opts)
	if err != nil {
		return models.RoutingDecision{}, fmt.Errorf("routing call: %w", err)
	}
	return parseSelections(out), nil
}

func parseSelections(reply string) models.RoutingDecision {
	up := strings.ToUpper(reply)
	return models.RoutingDecision{
		Sensor:      strings.Contains(up, "SENSOR_AGENT: YES"),
		Operator:    strings.Contains(up, "OPERATOR_AGENT: YES"),
		Maintenance: strings.Contains(up, "MAINTENANCE_AGENT: YES"),
	}
}

var _ Classifier = (*LLMClassifier)(nil)
