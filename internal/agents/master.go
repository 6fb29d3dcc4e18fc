package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rca-copilot/internal/models"
	"rca-copilot/internal/routing"
	"rca-copilot/internal/telemetry"
)

// Synthesizer merges per-domain findings into the final report.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, reports map[string]models.AgentReport) (string, error)
}

// Master orchestrates one analysis job: route the query, fan out to the
// selected agents concurrently, then synthesize their findings. Individual
// agent failures are isolated; only a synthesis failure fails the job.
type Master struct {
	router      *routing.Router
	sensor      *Agent
	operator    *Agent
	maintenance *Agent
	synthesizer Synthesizer
	logger      *slog.Logger
}

// NewMaster wires the orchestrator.
func NewMaster(router *routing.Router, sensor, operator, maintenance *Agent, synthesizer Synthesizer, logger *slog.Logger) *Master {
	return &Master{
		router:      router,
		sensor:      sensor,
		operator:    operator,
		maintenance: maintenance,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Analyze runs the full pipeline for one query.
func (m *Master) Analyze(ctx context.Context, query string) (models.Analysis, error) {
	started := time.Now()

	decision := m.router.Route(ctx, query)
	m.logger.Info("routing decision",
		"sensor", decision.Sensor,
		"operator", decision.Operator,
		"maintenance", decision.Maintenance,
	)

	reports := m.invoke(ctx, query, decision)

	report, err := m.synthesizer.Synthesize(ctx, query, reports)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("synthesize report: %w", err)
	}

	m.logger.Info("analysis complete", "agents", len(reports), "duration", time.Since(started))
	return models.Analysis{
		Query:       query,
		Routing:     decision,
		Reports:     reports,
		Report:      report,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// invoke runs the selected agents concurrently and collects their outcomes
// keyed by domain. Agents contain their own failures, so every selected
// agent always yields an outcome.
func (m *Master) invoke(ctx context.Context, query string, decision models.RoutingDecision) map[string]models.AgentReport {
	var selected []*Agent
	if decision.Sensor {
		selected = append(selected, m.sensor)
	}
	if decision.Operator {
		selected = append(selected, m.operator)
	}
	if decision.Maintenance {
		selected = append(selected, m.maintenance)
	}

	var mu sync.Mutex
	reports := make(map[string]models.AgentReport, len(selected))

	var g errgroup.Group
	for _, agent := range selected {
		agent := agent
		g.Go(func() error {
			rep := agent.Run(ctx, query)
			mu.Lock()
			reports[agent.Key()] = rep
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for key, rep := range reports {
		if !rep.Succeeded {
			telemetry.AgentFailures.WithLabelValues(key).Inc()
			m.logger.Warn("agent failed", "domain", key, "error", rep.Err)
		}
	}
	return reports
}
