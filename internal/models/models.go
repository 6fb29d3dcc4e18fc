package models

import (
	"fmt"
	"time"
)

// Result statuses as persisted in Redis. A record moves queued -> processing
// -> completed or failed; completed and failed are terminal.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Keys under which the orchestrator files per-agent outcomes.
const (
	DomainSensor      = "sensor_data"
	DomainOperator    = "operator_reports"
	DomainMaintenance = "maintenance_logs"
)

// Job is the unit of work the API pushes onto the queue and the worker pops.
type Job struct {
	ID          string    `json:"job_id"`
	QueryText   string    `json:"query_text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ResultRecord is the lifecycle record kept per job in the result store.
// At most one of Report and Error is set, and only in a terminal status.
type ResultRecord struct {
	QueryText   string     `json:"query_text"`
	Status      string     `json:"status"`
	Report      *string    `json:"report"`
	Error       *string    `json:"error"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Terminal reports whether the record has reached a final status.
func (r ResultRecord) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// RoutingDecision selects which specialized agents handle a query.
type RoutingDecision struct {
	Sensor      bool `json:"sensor_agent"`
	Operator    bool `json:"operator_agent"`
	Maintenance bool `json:"maintenance_agent"`
}

// AllAgents is the fail-open decision: every agent selected.
func AllAgents() RoutingDecision {
	return RoutingDecision{Sensor: true, Operator: true, Maintenance: true}
}

// Empty reports whether no agent is selected.
func (d RoutingDecision) Empty() bool {
	return !d.Sensor && !d.Operator && !d.Maintenance
}

// Count returns how many agents the decision selects.
func (d RoutingDecision) Count() int {
	n := 0
	for _, b := range []bool{d.Sensor, d.Operator, d.Maintenance} {
		if b {
			n++
		}
	}
	return n
}

// Document is one retrieved record. Field names vary with the index schema,
// so it stays schemaless.
type Document map[string]any

// Field returns the first non-empty value among the given keys, rendered as
// a string. Index schemas disagree on casing, so callers list the variants.
func (d Document) Field(keys ...string) string {
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// AgentReport is the outcome of one agent invocation. A failed invocation
// carries Err and nothing else; the orchestrator never drops it.
type AgentReport struct {
	Domain    string         `json:"domain"`
	Succeeded bool           `json:"succeeded"`
	Summary   string         `json:"summary,omitempty"`
	Narrative string         `json:"narrative,omitempty"`
	Documents []Document     `json:"documents,omitempty"`
	Stats     map[string]any `json:"stats,omitempty"`
	Err       string         `json:"error,omitempty"`
}

// Analysis is the terminal output of one orchestrated job.
type Analysis struct {
	Query       string                 `json:"query"`
	Routing     RoutingDecision        `json:"routing_decision"`
	Reports     map[string]AgentReport `json:"agent_reports"`
	Report      string                 `json:"report"`
	GeneratedAt time.Time              `json:"generated_at"`
}
