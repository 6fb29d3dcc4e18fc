// Package search retrieves domain records for agent queries. Exactly one
// implementation is selected at startup: the hosted Azure AI Search client
// when an endpoint is configured, otherwise the local keyword searcher over
// generated datasets. Callers never branch on which one they hold.
package search

import (
	"context"

	"rca-copilot/internal/models"
)

// Service returns the top-k most relevant records from one index.
type Service interface {
	Search(ctx context.Context, index, query string, topK int) ([]models.Document, error)
}
