// Package history archives terminal analysis runs in Postgres. The archive
// sits outside the TTL-bounded result store: rows here never expire and are
// never consulted for result lookups, so expiry semantics stay intact.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"rca-copilot/internal/models"
)

// Store wraps pgxpool for the analysis run archive.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	job_id       TEXT PRIMARY KEY,
	query_text   TEXT NOT NULL,
	status       TEXT NOT NULL,
	report       TEXT,
	error        TEXT,
	routing      JSONB,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	completed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_runs_completed_at_idx ON analysis_runs (completed_at DESC);
`

// Init creates the schema if it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Run is one archived terminal outcome.
type Run struct {
	JobID       string                 `json:"job_id"`
	QueryText   string                 `json:"query_text"`
	Status      string                 `json:"status"`
	Report      *string                `json:"report"`
	Error       *string                `json:"error"`
	Routing     models.RoutingDecision `json:"routing_decision"`
	Duration    time.Duration          `json:"-"`
	DurationMS  int64                  `json:"duration_ms"`
	CompletedAt time.Time              `json:"completed_at"`
}

// SaveRun upserts a terminal run. The worker may retry a best-effort write,
// so a duplicate job_id overwrites rather than errors.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	routingJSON, err := json.Marshal(run.Routing)
	if err != nil {
		return fmt.Errorf("marshal routing: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO analysis_runs (job_id, query_text, status, report, error, routing, duration_ms, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status, report = EXCLUDED.report, error = EXCLUDED.error,
		    routing = EXCLUDED.routing, duration_ms = EXCLUDED.duration_ms, completed_at = EXCLUDED.completed_at
	`, run.JobID, run.QueryText, run.Status, run.Report, run.Error, routingJSON, run.Duration.Milliseconds(), run.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns the newest runs, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, query_text, status, report, error, routing, duration_ms, completed_at
		FROM analysis_runs
		ORDER BY completed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var report, errText pgtype.Text
		var routingJSON []byte
		if err := rows.Scan(&run.JobID, &run.QueryText, &run.Status, &report, &errText, &routingJSON, &run.DurationMS, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Report = textPtr(report)
		run.Error = textPtr(errText)
		if len(routingJSON) > 0 {
			if err := json.Unmarshal(routingJSON, &run.Routing); err != nil {
				return nil, fmt.Errorf("unmarshal routing: %w", err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
