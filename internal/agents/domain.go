// Package agents implements the specialized retrieval agents and the master
// orchestrator that fans a query out across them.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"rca-copilot/internal/llm"
	"rca-copilot/internal/models"
	"rca-copilot/internal/search"
)

// promptDocLimit caps how many retrieved records are rendered into a
// summarization prompt regardless of the configured top-k.
const promptDocLimit = 20

// StatsFunc derives aggregate statistics from retrieved records. The output
// is informational; control flow never depends on it.
type StatsFunc func(docs []models.Document) (summary string, stats map[string]any)

// DomainSpec parameterizes one specialized agent. The production domains
// differ only in this data, not in behavior.
type DomainSpec struct {
	Key         string
	Name        string
	Description string
	Index       string
	EmptyNotice string
	Stats       StatsFunc
}

// Agent retrieves records for one domain and asks the model to interpret
// them against the query.
type Agent struct {
	spec   DomainSpec
	search search.Service
	llm    llm.Client
	opts   llm.Options
	topK   int
	logger *slog.Logger
}

// New builds an agent for the given domain.
func New(spec DomainSpec, svc search.Service, client llm.Client, opts llm.Options, topK int, logger *slog.Logger) *Agent {
	return &Agent{spec: spec, search: svc, llm: client, opts: opts, topK: topK, logger: logger}
}

// Key returns the domain key the orchestrator files this agent's outcome under.
func (a *Agent) Key() string { return a.spec.Key }

// Run performs one retrieval and summarization pass. Every failure mode,
// panics included, is contained here and reported on the outcome; nothing
// propagates to the caller.
func (a *Agent) Run(ctx context.Context, query string) (report models.AgentReport) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("agent panic", "agent", a.spec.Name, "panic", r)
			report = models.AgentReport{Domain: a.spec.Key, Err: fmt.Sprintf("%s panic: %v", a.spec.Name, r)}
		}
	}()

	docs, err := a.search.Search(ctx, a.spec.Index, query, a.topK)
	if err != nil {
		a.logger.Error("retrieval failed", "agent", a.spec.Name, "error", err)
		return models.AgentReport{Domain: a.spec.Key, Err: fmt.Sprintf("%s retrieval: %v", a.spec.Name, err)}
	}

	// Zero hits is an answer, not an error.
	if len(docs) == 0 {
		a.logger.Info("no records matched", "agent", a.spec.Name, "query", query)
		return models.AgentReport{
			Domain:    a.spec.Key,
			Succeeded: true,
			Summary:   a.spec.EmptyNotice,
			Narrative: a.spec.EmptyNotice,
		}
	}

	summary, stats := a.spec.Stats(docs)
	narrative, err := a.summarize(ctx, query, docs)
	if err != nil {
		a.logger.Error("summarization failed", "agent", a.spec.Name, "error", err)
		return models.AgentReport{Domain: a.spec.Key, Err: fmt.Sprintf("%s summarization: %v", a.spec.Name, err)}
	}

	a.logger.Info("agent completed", "agent", a.spec.Name, "documents", len(docs))
	return models.AgentReport{
		Domain:    a.spec.Key,
		Succeeded: true,
		Summary:   summary,
		Narrative: narrative,
		Documents: docs,
		Stats:     stats,
	}
}

const agentPromptTemplate = `You are the %s for an industrial root cause analysis team.
%s

User Query: %q

Retrieved records (most relevant first):
%s

Interpret the evidence with respect to the query. Call out notable anomalies,
the machines affected, and likely contributing factors. Be specific and concise.`

func (a *Agent) summarize(ctx context.Context, query string, docs []models.Document) (string, error) {
	return a.llm.Generate(ctx, fmt.Sprintf(agentPromptTemplate, a.spec.Name, a.spec.Description, query, formatDocs(docs)), a.opts)
}

// formatDocs renders records as one compact JSON object per line.
func formatDocs(docs []models.Document) string {
	if len(docs) > promptDocLimit {
		docs = docs[:promptDocLimit]
	}
	var b strings.Builder
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		b.WriteString("- ")
		b.Write(line)
		b.WriteString("\n")
	}
	return b.String()
}
