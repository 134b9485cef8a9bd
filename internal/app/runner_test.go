package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitegauge/sitegauge/internal/app"
	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/ratelimit"
	"github.com/sitegauge/sitegauge/internal/store"
)

func newTestRunner(t *testing.T, target *httptest.Server, limitCfg ratelimit.Config) *app.Runner {
	t.Helper()

	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "scans.db"),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := app.DefaultConfig()
	cfg.RateLimitCfg = limitCfg

	runner, err := app.NewRunnerWithHTTPClient(cfg, st, logging.NewNop(), target.Client())
	if err != nil {
		t.Fatalf("NewRunnerWithHTTPClient: %v", err)
	}
	return runner
}

func newTargetSite(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html lang="en"><body><a href="#main">skip</a><h1>Hi</h1><button>Go</button></body></html>`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunner_RunSync(t *testing.T) {
	t.Parallel()
	target := newTargetSite(t)
	runner := newTestRunner(t, target, ratelimit.DefaultConfig())

	rec, err := runner.RunSync(context.Background(), target.URL)
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if rec.ID == "" {
		t.Error("expected a scan id")
	}
	if rec.OverallScore <= 0 {
		t.Errorf("overall score = %d, want positive", rec.OverallScore)
	}
	if rec.Results.E2E.Data.ButtonsFound != 1 {
		t.Errorf("buttons = %d, want 1", rec.Results.E2E.Data.ButtonsFound)
	}

	// The synchronous path also persists.
	stored, err := runner.Store().Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get stored record: %v", err)
	}
	if stored.OverallScore != rec.OverallScore {
		t.Errorf("stored score %d differs from returned %d", stored.OverallScore, rec.OverallScore)
	}
}

func TestRunner_RunSync_InvalidURL(t *testing.T) {
	t.Parallel()
	target := newTargetSite(t)
	runner := newTestRunner(t, target, ratelimit.DefaultConfig())

	if _, err := runner.RunSync(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestRunner_RateLimitedBeforeAnyWork(t *testing.T) {
	t.Parallel()
	var hits atomic.Int64
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(target.Close)

	runner := newTestRunner(t, target, ratelimit.Config{Window: time.Hour, Ceiling: 1})

	if _, err := runner.RunSync(context.Background(), target.URL); err != nil {
		t.Fatalf("first RunSync: %v", err)
	}
	hitsAfterFirst := hits.Load()

	_, err := runner.RunSync(context.Background(), target.URL)
	if !errors.Is(err, app.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if hits.Load() != hitsAfterFirst {
		t.Error("rejected scan must not touch the target")
	}
}

func TestRunner_StartScanStreamsEventsAndCompletes(t *testing.T) {
	t.Parallel()
	target := newTargetSite(t)
	runner := newTestRunner(t, target, ratelimit.DefaultConfig())

	job, err := runner.StartScan(target.URL)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if job.Status != app.JobRunning {
		t.Errorf("initial status = %q, want running", job.Status)
	}

	var sawProgress, sawResult bool
	deadline := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-job.Events:
			if !ok {
				if !sawProgress {
					t.Error("no progress events observed")
				}
				if !sawResult {
					t.Error("no result event observed")
				}
				snap, found := runner.Snapshot(job.ID)
				if !found {
					t.Fatal("job vanished")
				}
				if snap.Status != app.JobDone {
					t.Errorf("final status = %q, want done", snap.Status)
				}
				if snap.Record == nil {
					t.Fatal("expected a persisted record on the job")
				}
				return
			}
			switch ev.Type {
			case app.JobEventProgress:
				sawProgress = true
			case app.JobEventResult:
				sawResult = true
				if ev.Record == nil {
					t.Error("result event without a record")
				}
			}
		case <-deadline:
			t.Fatal("scan did not finish in time")
		}
	}
}

func TestRunner_FinishedJobsEvictedAfterRetention(t *testing.T) {
	t.Parallel()
	target := newTargetSite(t)

	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "scans.db"),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := app.DefaultConfig()
	cfg.JobRetention = 50 * time.Millisecond
	runner, err := app.NewRunnerWithHTTPClient(cfg, st, logging.NewNop(), target.Client())
	if err != nil {
		t.Fatalf("NewRunnerWithHTTPClient: %v", err)
	}

	first, err := runner.StartScan(target.URL)
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	for range first.Events {
	}

	time.Sleep(100 * time.Millisecond)

	// Eviction happens when the next job is registered.
	if _, err := runner.StartScan(target.URL); err != nil {
		t.Fatalf("second StartScan: %v", err)
	}

	if _, ok := runner.Job(first.ID); ok {
		t.Error("finished job still in memory past its retention")
	}
	if _, err := runner.Store().Get(context.Background(), first.ID); err != nil {
		t.Errorf("evicted job's record missing from the store: %v", err)
	}
}

func TestRunner_JobLookup(t *testing.T) {
	t.Parallel()
	target := newTargetSite(t)
	runner := newTestRunner(t, target, ratelimit.DefaultConfig())

	if _, ok := runner.Job("unknown"); ok {
		t.Error("unexpected job for unknown id")
	}
	if _, ok := runner.Snapshot("unknown"); ok {
		t.Error("unexpected snapshot for unknown id")
	}
}
