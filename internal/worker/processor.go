// Package worker consumes analysis jobs from the queue and runs them to a
// terminal result. Delivery is at most once: a job popped from the queue is
// gone, so a crash mid-analysis leaves only a stale "processing" record that
// the result TTL eventually clears.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rca-copilot/internal/config"
	"rca-copilot/internal/history"
	"rca-copilot/internal/models"
	"rca-copilot/internal/queue"
	"rca-copilot/internal/reports"
	"rca-copilot/internal/store"
	"rca-copilot/internal/telemetry"
)

// Analyzer runs the full multi-agent analysis for one query.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (models.Analysis, error)
}

// Processor is the queue consumer loop.
type Processor struct {
	cfg      config.Config
	queue    *queue.QueryQueue
	store    *store.ResultStore
	analyzer Analyzer
	history  *history.Store
	reports  reports.Archiver
	logger   *slog.Logger
}

func New(cfg config.Config, q *queue.QueryQueue, st *store.ResultStore, analyzer Analyzer, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:      cfg,
		queue:    q,
		store:    st,
		analyzer: analyzer,
		logger:   logger,
	}
}

// SetHistory enables best-effort archiving of terminal runs.
func (p *Processor) SetHistory(h *history.Store) { p.history = h }

// SetReportArchiver enables best-effort archiving of completed reports.
func (p *Processor) SetReportArchiver(a reports.Archiver) { p.reports = a }

// Run blocks consuming jobs until ctx is cancelled. Pop errors are logged and
// retried after a pause; a failed job never stops the loop.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("worker started", "queue", p.cfg.QueueKey, "pop_timeout", p.cfg.PopTimeout)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		if depth, err := p.queue.Depth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}

		job, err := p.queue.PopBlocking(ctx, p.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("pop job", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		p.process(ctx, *job)
	}
}

func (p *Processor) process(ctx context.Context, job models.Job) {
	logger := p.logger.With("job_id", job.ID)
	logger.Info("processing query", "query_text", job.QueryText)
	started := time.Now()

	if err := p.store.UpdateStatus(ctx, job.ID, models.StatusProcessing); err != nil {
		// The record may have expired while the job sat queued. Keep going;
		// the terminal write below recreates it.
		logger.Warn("mark processing", "error", err)
	}

	analysis, err := p.runAnalysis(ctx, job.QueryText)

	now := time.Now().UTC()
	record := models.ResultRecord{
		QueryText:   job.QueryText,
		CompletedAt: &now,
	}
	if err != nil {
		msg := err.Error()
		record.Status = models.StatusFailed
		record.Error = &msg
		telemetry.QueriesFailed.Inc()
		logger.Error("analysis failed", "error", err, "duration", time.Since(started))
	} else {
		record.Status = models.StatusCompleted
		record.Report = &analysis.Report
		telemetry.QueriesCompleted.Inc()
		logger.Info("analysis completed", "duration", time.Since(started), "report_bytes", len(analysis.Report))
	}
	telemetry.ProcessingSeconds.Observe(time.Since(started).Seconds())

	if err := p.store.Put(ctx, job.ID, record); err != nil {
		logger.Error("store result", "error", err)
	}

	p.archive(ctx, job, record, analysis, time.Since(started), logger)
}

// archive performs the best-effort side writes. Failures are logged and never
// affect the stored result.
func (p *Processor) archive(ctx context.Context, job models.Job, record models.ResultRecord, analysis models.Analysis, took time.Duration, logger *slog.Logger) {
	if p.history != nil {
		run := history.Run{
			JobID:       job.ID,
			QueryText:   job.QueryText,
			Status:      record.Status,
			Report:      record.Report,
			Error:       record.Error,
			Routing:     analysis.Routing,
			Duration:    took,
			CompletedAt: *record.CompletedAt,
		}
		if err := p.history.SaveRun(ctx, run); err != nil {
			logger.Warn("archive run", "error", err)
		}
	}
	if p.reports != nil && record.Status == models.StatusCompleted && record.Report != nil {
		location, err := p.reports.Store(ctx, job.ID+".md", []byte(*record.Report))
		if err != nil {
			logger.Warn("archive report", "error", err)
		} else {
			logger.Info("report archived", "location", location)
		}
	}
}

// runAnalysis bounds the analysis with the job timeout and converts panics
// into ordinary failures so one bad job cannot kill the loop.
func (p *Processor) runAnalysis(ctx context.Context, query string) (analysis models.Analysis, err error) {
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panic: %v", r)
		}
	}()
	return p.analyzer.Analyze(ctx, query)
}
