// Package routing decides which specialized agents handle a query.
package routing

import (
	"context"
	"log/slog"

	"rca-copilot/internal/models"
)

// Classifier produces the raw per-domain selection for a query.
type Classifier interface {
	Classify(ctx context.Context, query string) (models.RoutingDecision, error)
}

// Router turns a query into a usable routing decision. Classification errors
// and all-negative classifications both fail open to every agent: under
// uncertainty the pipeline over-invokes rather than silently dropping an
// evidence source. Route therefore never returns an empty decision.
type Router struct {
	classifier Classifier
	logger     *slog.Logger
}

// New builds a router around the given classifier.
func New(classifier Classifier, logger *slog.Logger) *Router {
	return &Router{classifier: classifier, logger: logger}
}

// Route classifies the query, applying the fail-open default when needed.
func (r *Router) Route(ctx context.Context, query string) models.RoutingDecision {
	decision, err := r.classifier.Classify(ctx, query)
	if err != nil {
		r.logger.Warn("classification failed, selecting all agents", "error", err)
		return models.AllAgents()
	}
	if decision.Empty() {
		r.logger.Warn("classifier selected no agents, selecting all")
		return models.AllAgents()
	}
	return decision
}
