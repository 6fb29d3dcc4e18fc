package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"rca-copilot/internal/config"
	"rca-copilot/internal/models"
	"rca-copilot/internal/queue"
	"rca-copilot/internal/store"
)

type analyzerFunc func(ctx context.Context, query string) (models.Analysis, error)

func (f analyzerFunc) Analyze(ctx context.Context, query string) (models.Analysis, error) {
	return f(ctx, query)
}

type fixture struct {
	queue *queue.QueryQueue
	store *store.ResultStore
	cfg   config.Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cfg := config.Config{
		QueueKey:   "rca:queue",
		PopTimeout: 50 * time.Millisecond,
		JobTimeout: 5 * time.Second,
	}
	return fixture{
		queue: queue.New(client, cfg.QueueKey),
		store: store.New(client, "rca:result:", time.Hour),
		cfg:   cfg,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func submit(t *testing.T, f fixture, id, query string) {
	t.Helper()
	ctx := context.Background()
	err := f.store.Put(ctx, id, models.ResultRecord{QueryText: query, Status: models.StatusQueued})
	if err != nil {
		t.Fatalf("put record: %v", err)
	}
	if err := f.queue.Push(ctx, models.Job{ID: id, QueryText: query, SubmittedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("push job: %v", err)
	}
}

func waitStatus(t *testing.T, f fixture, id, want string) models.ResultRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, err := f.store.Get(context.Background(), id)
		if err == nil && record.Status == want {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	record, err := f.store.Get(context.Background(), id)
	t.Fatalf("job %s never reached %q (last record %+v, err %v)", id, want, record, err)
	return models.ResultRecord{}
}

func TestProcessorCompletesJob(t *testing.T) {
	f := newFixture(t)
	analyzer := analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		return models.Analysis{Query: query, Report: "root cause: bearing wear on " + query}, nil
	})
	p := New(f.cfg, f.queue, f.store, analyzer, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	submit(t, f, "job-1", "MCH_003 vibration")
	record := waitStatus(t, f, "job-1", models.StatusCompleted)
	if record.Report == nil || !strings.Contains(*record.Report, "MCH_003 vibration") {
		t.Fatalf("unexpected report %v", record.Report)
	}
	if record.Error != nil {
		t.Fatalf("completed record carries error %q", *record.Error)
	}
	if record.CompletedAt == nil {
		t.Fatal("completed record missing completed_at")
	}
}

func TestProcessorRecordsFailureAndContinues(t *testing.T) {
	f := newFixture(t)
	analyzer := analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		if strings.Contains(query, "bad") {
			return models.Analysis{}, errors.New("synthesize report: model unavailable")
		}
		return models.Analysis{Query: query, Report: "ok"}, nil
	})
	p := New(f.cfg, f.queue, f.store, analyzer, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	submit(t, f, "job-bad", "bad query")
	submit(t, f, "job-good", "good query")

	failed := waitStatus(t, f, "job-bad", models.StatusFailed)
	if failed.Error == nil || !strings.Contains(*failed.Error, "model unavailable") {
		t.Fatalf("unexpected error %v", failed.Error)
	}
	if failed.Report != nil {
		t.Fatalf("failed record carries report %q", *failed.Report)
	}
	// The loop must survive the failure and process the next job.
	waitStatus(t, f, "job-good", models.StatusCompleted)
}

func TestProcessorContainsPanic(t *testing.T) {
	f := newFixture(t)
	analyzer := analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		if strings.Contains(query, "boom") {
			panic("index out of range")
		}
		return models.Analysis{Query: query, Report: "ok"}, nil
	})
	p := New(f.cfg, f.queue, f.store, analyzer, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	submit(t, f, "job-panic", "boom")
	record := waitStatus(t, f, "job-panic", models.StatusFailed)
	if record.Error == nil || !strings.Contains(*record.Error, "analysis panic") {
		t.Fatalf("unexpected error %v", record.Error)
	}

	submit(t, f, "job-after", "fine")
	waitStatus(t, f, "job-after", models.StatusCompleted)
}

func TestProcessorWritesResultWhenRecordExpired(t *testing.T) {
	f := newFixture(t)
	analyzer := analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		return models.Analysis{Query: query, Report: "late but done"}, nil
	})
	p := New(f.cfg, f.queue, f.store, analyzer, testLogger())

	// Queue the job without a result record, as if the record expired while
	// the job sat in the queue.
	ctx := context.Background()
	if err := f.queue.Push(ctx, models.Job{ID: "job-x", QueryText: "orphan", SubmittedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("push job: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(runCtx)

	record := waitStatus(t, f, "job-x", models.StatusCompleted)
	if record.Report == nil || *record.Report != "late but done" {
		t.Fatalf("unexpected report %v", record.Report)
	}
}

func TestProcessorStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	analyzer := analyzerFunc(func(ctx context.Context, query string) (models.Analysis, error) {
		return models.Analysis{}, nil
	})
	p := New(f.cfg, f.queue, f.store, analyzer, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
