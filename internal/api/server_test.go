package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"rca-copilot/internal/config"
	"rca-copilot/internal/models"
	"rca-copilot/internal/queue"
	"rca-copilot/internal/ratelimit"
	"rca-copilot/internal/store"
)

type analyzerFunc func(ctx context.Context, query string) (models.Analysis, error)

func (f analyzerFunc) Analyze(ctx context.Context, query string) (models.Analysis, error) {
	return f(ctx, query)
}

const testTTL = time.Hour

func newTestServer(t *testing.T) (*Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cfg := config.Config{
		ServiceName: "rca-copilot",
		QueueKey:    "rca:queue",
		JobTimeout:  5 * time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(client, "rca:result:", testTTL)
	q := queue.New(client, cfg.QueueKey)
	return New(cfg, st, q, nil, logger), mr
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestAskAndResultLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/ask", `{"query_text":"Why is MCH_003 vibrating?"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("ask status = %d, want 202 (%s)", rr.Code, rr.Body.String())
	}
	var ask askResponse
	decodeInto(t, rr, &ask)
	if ask.JobID == "" || ask.Status != models.StatusQueued {
		t.Fatalf("unexpected ask response %+v", ask)
	}
	if !strings.Contains(ask.Message, ask.JobID) {
		t.Fatalf("message %q does not mention job id", ask.Message)
	}

	rr = do(t, s, http.MethodGet, "/result/"+ask.JobID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("result status = %d (%s)", rr.Code, rr.Body.String())
	}
	var result resultResponse
	decodeInto(t, rr, &result)
	if result.Status != models.StatusQueued || result.QueryText != "Why is MCH_003 vibrating?" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Report != nil || result.Error != nil || result.CompletedAt != nil {
		t.Fatalf("queued result should have nil report/error/completed_at, got %+v", result)
	}

	rr = do(t, s, http.MethodGet, "/results", "")
	var list listResponse
	decodeInto(t, rr, &list)
	if list.Total != 1 || len(list.Queries) != 1 || list.Queries[0].JobID != ask.JobID {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestAskRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	if rr := do(t, s, http.MethodPost, "/ask", `{"query_text":"   "}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("blank query status = %d, want 400", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/ask", `{not json`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", rr.Code)
	}
}

func TestResultExpiredLooksLikeUnknown(t *testing.T) {
	s, mr := newTestServer(t)

	unknown := do(t, s, http.MethodGet, "/result/no-such-job", "")
	if unknown.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", unknown.Code)
	}

	rr := do(t, s, http.MethodPost, "/ask", `{"query_text":"temp spike"}`)
	var ask askResponse
	decodeInto(t, rr, &ask)

	mr.FastForward(testTTL + time.Minute)

	expired := do(t, s, http.MethodGet, "/result/"+ask.JobID, "")
	if expired.Code != http.StatusNotFound {
		t.Fatalf("expired id status = %d, want 404", expired.Code)
	}
	if expired.Body.String() != unknown.Body.String() {
		t.Fatalf("expired body %q differs from unknown body %q", expired.Body.String(), unknown.Body.String())
	}
}

func TestAskRateLimited(t *testing.T) {
	s, mr := newTestServer(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s.limiter = ratelimit.NewTokenBucket(client, 1, 0.0001, time.Minute)

	if rr := do(t, s, http.MethodPost, "/ask", `{"query_text":"first"}`); rr.Code != http.StatusAccepted {
		t.Fatalf("first ask status = %d, want 202", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/ask", `{"query_text":"second"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second ask status = %d, want 429", rr.Code)
	}
}

func TestRCAWithoutEngine(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s, http.MethodPost, "/rca", `{"alert_description":"temperature spike"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("rca status = %d, want 503", rr.Code)
	}
}

func TestRCAComposesAlertQuery(t *testing.T) {
	s, _ := newTestServer(t)
	var seen string
	s.SetAnalyzer(analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		seen = query
		return models.Analysis{
			Query:       query,
			Routing:     models.RoutingDecision{Sensor: true},
			Report:      "likely compressor overheating",
			GeneratedAt: time.Now().UTC(),
		}, nil
	}))

	body := `{"alert_description":"Sudden temperature spike exceeding 90C","machine_id":"MCH_012","alert_type":"High Temperature","severity":"Critical"}`
	rr := do(t, s, http.MethodPost, "/rca", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("rca status = %d (%s)", rr.Code, rr.Body.String())
	}
	var resp rcaResponse
	decodeInto(t, rr, &resp)
	if !resp.Success || resp.Report == nil || *resp.Report != "likely compressor overheating" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Routing == nil || !resp.Routing.Sensor {
		t.Fatalf("routing decision missing from response: %+v", resp.Routing)
	}
	for _, want := range []string{
		"Alert Type: High Temperature",
		"Machine: MCH_012",
		"Severity: Critical",
		"Issue Description: Sudden temperature spike exceeding 90C",
		"root cause analysis",
	} {
		if !strings.Contains(seen, want) {
			t.Fatalf("composed query missing %q:\n%s", want, seen)
		}
	}
}

func TestRCAAnalysisFailure(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetAnalyzer(analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		return models.Analysis{}, errors.New("synthesize report: model unavailable")
	}))

	rr := do(t, s, http.MethodPost, "/rca", `{"alert_description":"pressure drop"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("rca status = %d, want 200", rr.Code)
	}
	var resp rcaResponse
	decodeInto(t, rr, &resp)
	if resp.Success || resp.Error == nil || !strings.Contains(*resp.Error, "model unavailable") {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Report != nil {
		t.Fatalf("failed analysis should carry no report, got %q", *resp.Report)
	}
}

func TestRCARequiresDescription(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetAnalyzer(analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		return models.Analysis{}, nil
	}))
	rr := do(t, s, http.MethodPost, "/rca", `{"machine_id":"MCH_001"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("rca status = %d, want 400", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d (%s)", rr.Code, rr.Body.String())
	}
	var health map[string]any
	decodeInto(t, rr, &health)
	if health["status"] != "healthy" || health["redis"] != "connected" {
		t.Fatalf("unexpected health payload %v", health)
	}
	if health["pending_queries"] != float64(0) {
		t.Fatalf("pending_queries = %v, want 0", health["pending_queries"])
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	s, _ := newTestServer(t)
	if rr := do(t, s, http.MethodGet, "/history", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("history status = %d, want 503", rr.Code)
	}
}
