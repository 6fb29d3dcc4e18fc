// Package api exposes the query submission and result retrieval endpoints.
// Submission is asynchronous: POST /ask enqueues a job and returns a job ID;
// the worker fills in the result, which callers poll via GET /result/{id}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rca-copilot/internal/config"
	"rca-copilot/internal/history"
	"rca-copilot/internal/models"
	"rca-copilot/internal/queue"
	"rca-copilot/internal/ratelimit"
	"rca-copilot/internal/store"
	"rca-copilot/internal/telemetry"
)

// Analyzer runs a full analysis synchronously, for the direct alert endpoint.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (models.Analysis, error)
}

// Server wires the HTTP handlers.
type Server struct {
	cfg     config.Config
	store   *store.ResultStore
	queue   *queue.QueryQueue
	limiter *ratelimit.TokenBucket
	master  Analyzer
	history *history.Store
	logger  *slog.Logger
}

func New(cfg config.Config, st *store.ResultStore, q *queue.QueryQueue, limiter *ratelimit.TokenBucket, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		queue:   q,
		limiter: limiter,
		logger:  logger,
	}
}

// SetAnalyzer enables POST /rca. Without it the endpoint answers 503.
func (s *Server) SetAnalyzer(a Analyzer) { s.master = a }

// SetHistory enables GET /history. Without it the endpoint answers 503.
func (s *Server) SetHistory(h *history.Store) { s.history = h }

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/ask", s.handleAsk)
	r.Get("/result/{jobID}", s.handleResult)
	r.Get("/results", s.handleResults)
	r.Post("/rca", s.handleRCA)
	r.Get("/history", s.handleHistory)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": s.cfg.ServiceName,
		"status":  "running",
		"endpoints": map[string]string{
			"ask":     "/ask - POST a query for queued analysis",
			"result":  "/result/{job_id} - GET the outcome of a query",
			"results": "/results - GET all live queries",
			"rca":     "/rca - POST an alert for immediate analysis",
			"history": "/history - GET archived runs",
			"health":  "/health - service health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unhealthy",
			"message": fmt.Sprintf("redis error: %v", err),
		})
		return
	}
	pending, err := s.queue.Depth(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unhealthy",
			"message": fmt.Sprintf("queue error: %v", err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"redis":           "connected",
		"service":         s.cfg.ServiceName,
		"pending_queries": pending,
	})
}

type askRequest struct {
	QueryText string `json:"query_text"`
}

type askResponse struct {
	JobID     string `json:"job_id"`
	QueryText string `json:"query_text"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	query := strings.TrimSpace(req.QueryText)
	if query == "" {
		http.Error(w, "query_text is required", http.StatusBadRequest)
		return
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), clientFromRequest(r))
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	jobID := uuid.New().String()
	record := models.ResultRecord{
		QueryText: query,
		Status:    models.StatusQueued,
	}
	if err := s.store.Put(r.Context(), jobID, record); err != nil {
		s.logger.Error("store queued record", "job_id", jobID, "error", err)
		http.Error(w, "result store unavailable", http.StatusServiceUnavailable)
		return
	}
	job := models.Job{
		ID:          jobID,
		QueryText:   query,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.queue.Push(r.Context(), job); err != nil {
		// Roll back the record so a failed submit leaves no trace.
		_ = s.store.Delete(r.Context(), jobID)
		s.logger.Error("enqueue job", "job_id", jobID, "error", err)
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	telemetry.QueriesSubmitted.Inc()
	s.logger.Info("query queued", "job_id", jobID, "query_text", query)

	writeJSON(w, http.StatusAccepted, askResponse{
		JobID:     jobID,
		QueryText: query,
		Status:    models.StatusQueued,
		Message:   fmt.Sprintf("Query queued for processing. Use /result/%s to get the report.", jobID),
	})
}

type resultResponse struct {
	JobID       string     `json:"job_id"`
	QueryText   string     `json:"query_text"`
	Status      string     `json:"status"`
	Report      *string    `json:"report"`
	Error       *string    `json:"error"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	rec, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		// Expired and never-submitted take the same path here.
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "result not found or expired", http.StatusNotFound)
			return
		}
		s.logger.Error("fetch result", "job_id", jobID, "error", err)
		http.Error(w, "failed to fetch result", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		JobID:       jobID,
		QueryText:   rec.QueryText,
		Status:      rec.Status,
		Report:      rec.Report,
		Error:       rec.Error,
		CompletedAt: rec.CompletedAt,
	})
}

type listResponse struct {
	Total   int           `json:"total"`
	Queries []store.Entry `json:"queries"`
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list results", "error", err)
		http.Error(w, "failed to list results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Total: len(entries), Queries: entries})
}

type rcaRequest struct {
	AlertDescription string `json:"alert_description"`
	AlertID          string `json:"alert_id"`
	MachineID        string `json:"machine_id"`
	AlertType        string `json:"alert_type"`
	Severity         string `json:"severity"`
}

type rcaResponse struct {
	Success          bool                    `json:"success"`
	AlertDescription string                  `json:"alert_description"`
	Report           *string                 `json:"report"`
	Error            *string                 `json:"error"`
	Timestamp        time.Time               `json:"timestamp"`
	Routing          *models.RoutingDecision `json:"routing_decision"`
}

func (s *Server) handleRCA(w http.ResponseWriter, r *http.Request) {
	if s.master == nil {
		http.Error(w, "analysis engine not configured", http.StatusServiceUnavailable)
		return
	}
	var req rcaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.AlertDescription) == "" {
		http.Error(w, "alert_description is required", http.StatusBadRequest)
		return
	}

	s.logger.Info("alert analysis requested",
		"alert_id", req.AlertID, "machine_id", req.MachineID, "alert_type", req.AlertType)

	ctx := r.Context()
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}
	analysis, err := s.master.Analyze(ctx, alertQuery(req))
	if err != nil {
		// Analysis failures stay inside the envelope, like queued jobs.
		msg := err.Error()
		s.logger.Error("alert analysis failed", "alert_id", req.AlertID, "error", err)
		writeJSON(w, http.StatusOK, rcaResponse{
			Success:          false,
			AlertDescription: req.AlertDescription,
			Error:            &msg,
			Timestamp:        time.Now().UTC(),
		})
		return
	}
	writeJSON(w, http.StatusOK, rcaResponse{
		Success:          true,
		AlertDescription: req.AlertDescription,
		Report:           &analysis.Report,
		Timestamp:        analysis.GeneratedAt,
		Routing:          &analysis.Routing,
	})
}

// alertQuery expands an alert into the analysis prompt, keeping only the
// fields the caller filled in.
func alertQuery(req rcaRequest) string {
	parts := []string{}
	if req.AlertType != "" {
		parts = append(parts, "Alert Type: "+req.AlertType)
	}
	if req.MachineID != "" {
		parts = append(parts, "Machine: "+req.MachineID)
	}
	if req.Severity != "" {
		parts = append(parts, "Severity: "+req.Severity)
	}
	parts = append(parts,
		"Issue Description: "+req.AlertDescription,
		"Please provide a detailed root cause analysis with:",
		"1. Analysis of sensor data and anomalies",
		"2. Review of operator reports and observations",
		"3. Examination of maintenance history",
		"4. Identified root causes",
		"5. Recommended mitigation and preventive actions",
	)
	return strings.Join(parts, "\n")
}

type historyResponse struct {
	Total int           `json:"total"`
	Runs  []history.Run `json:"runs"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}
	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("fetch history", "error", err)
		http.Error(w, "failed to fetch history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Total: len(runs), Runs: runs})
}

func clientFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Client-ID"); v != "" {
		return v
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
