// Package synthesis turns per-domain agent findings into the final root
// cause analysis report.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"rca-copilot/internal/llm"
	"rca-copilot/internal/models"
)

// Placeholders used when a domain contributed nothing, so the report prompt
// always presents all three evidence sections.
const (
	noSensorAnalysis      = "No sensor analysis available."
	noOperatorAnalysis    = "No operator analysis available."
	noMaintenanceAnalysis = "No maintenance analysis available."
)

var reportTemplate = template.Must(template.New("report").Parse(`You are an expert reliability engineer preparing a root cause analysis for industrial equipment.

User Query: {{printf "%q" .Query}}

=== Sensor Data Findings ===
{{.Sensor.Analysis}}
{{- range .Sensor.DocLines}}
- {{.}}
{{- end}}

=== Operator Report Findings ===
{{.Operator.Analysis}}
{{- range .Operator.DocLines}}
- {{.}}
{{- end}}

=== Maintenance Log Findings ===
{{.Maintenance.Analysis}}
{{- range .Maintenance.DocLines}}
- {{.}}
{{- end}}

Using only the evidence above, produce a concise root cause analysis with these sections:
1. Observed Symptoms
2. Correlated Evidence
3. Most Likely Root Cause(s)
4. Recommended Mitigation Steps (immediate, short-term, preventive)

Use bullet points. If a data source reported an error or no data, say so rather than inventing evidence.`))

type section struct {
	Analysis string
	DocLines []string
}

type promptData struct {
	Query       string
	Sensor      section
	Operator    section
	Maintenance section
}

// Synthesizer renders the report prompt and asks the model for the final
// narrative.
type Synthesizer struct {
	llm  llm.Client
	opts llm.Options
}

// New builds a synthesizer with report-specific call options.
func New(client llm.Client, opts llm.Options) *Synthesizer {
	return &Synthesizer{llm: client, opts: opts}
}

// Synthesize merges the agent outcomes into one report. Failed agents
// contribute their error text in place of analysis; agents that were never
// selected contribute a placeholder. A model failure here fails the job.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, reports map[string]models.AgentReport) (string, error) {
	data := promptData{
		Query:       query,
		Sensor:      buildSection(reports, models.DomainSensor, noSensorAnalysis),
		Operator:    buildSection(reports, models.DomainOperator, noOperatorAnalysis),
		Maintenance: buildSection(reports, models.DomainMaintenance, noMaintenanceAnalysis),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report prompt: %w", err)
	}

	out, err := s.llm.Generate(ctx, buf.String(), s.opts)
	if err != nil {
		return "", fmt.Errorf("report call: %w", err)
	}
	return out, nil
}

func buildSection(reports map[string]models.AgentReport, key, placeholder string) section {
	rep, ok := reports[key]
	if !ok {
		return section{Analysis: placeholder}
	}
	if !rep.Succeeded {
		return section{Analysis: fmt.Sprintf("No data from this domain: %s", rep.Err)}
	}
	analysis := rep.Narrative
	if analysis == "" {
		analysis = rep.Summary
	}
	if analysis == "" {
		analysis = placeholder
	}
	return section{Analysis: analysis, DocLines: docLines(rep.Documents)}
}

func docLines(docs []models.Document) []string {
	lines := make([]string, 0, len(docs))
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		lines = append(lines, string(line))
	}
	return lines
}
