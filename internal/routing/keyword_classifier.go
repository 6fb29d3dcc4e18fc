package routing

import (
	"context"
	"strings"

	"rca-copilot/internal/models"
)

// Trigger vocabularies per domain, matched case-insensitively as substrings
// so plural and inflected forms hit too.
var (
	sensorTriggers      = []string{"sensor", "reading", "temperature", "vibration", "pressure", "real-time"}
	operatorTriggers    = []string{"operator", "report", "incident", "observation"}
	maintenanceTriggers = []string{"maintenance", "repair", "component", "failure", "technician"}
)

// KeywordClassifier matches the trigger vocabularies directly, with no model
// call. Selected with ROUTER_MODE=keyword; useful offline and in tests.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, query string) (models.RoutingDecision, error) {
	q := strings.ToLower(query)
	return models.RoutingDecision{
		Sensor:      containsAny(q, sensorTriggers),
		Operator:    containsAny(q, operatorTriggers),
		Maintenance: containsAny(q, maintenanceTriggers),
	}, nil
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

var _ Classifier = KeywordClassifier{}
