package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/pagespeed"
	"github.com/sitegauge/sitegauge/internal/ratelimit"
	"github.com/sitegauge/sitegauge/internal/scan"
	"github.com/sitegauge/sitegauge/internal/store"
	"github.com/sitegauge/sitegauge/internal/summarize"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

// ErrRateLimited marks a scan rejected by the per-host ceiling before any
// analyzer ran. This is a distinct terminal outcome, not an analyzer
// failure.
var ErrRateLimited = errors.New("app: host scan ceiling exceeded")

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

// JobEvent is one update on a running scan, streamed over the websocket.
type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For per-analyzer progress
	Stage      string      `json:"stage,omitempty"`
	StageState scan.Status `json:"stage_state,omitempty"`

	// For the final result
	Record *store.Record `json:"record,omitempty"`
}

// Job tracks one scan from submission to persistence.
type Job struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Host      string        `json:"host"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Events    chan JobEvent `json:"-"`

	// Record holds the persisted result once the job is done.
	Record *store.Record `json:"record,omitempty"`
}

// Runner ties together the rate limiter, the scan pipeline and the store,
// and tracks in-flight jobs for the API layer.
type Runner struct {
	cfg     *Config
	scanner *scan.Scanner
	store   *store.Store
	limiter *ratelimit.HostLimiter
	logger  logging.Logger

	jobsMu sync.Mutex
	jobs   map[string]*Job
}

// NewRunner wires the whole pipeline from config. The page-speed client and
// the summarizer are only constructed when their API keys are present.
func NewRunner(cfg *Config, st *store.Store, logger logging.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.JobRetention <= 0 {
		cfg.JobRetention = DefaultConfig().JobRetention
	}

	wc, err := webclient.New(cfg.WebclientCfg, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("create webclient: %w", err)
	}

	var ps *pagespeed.Client
	if cfg.PageSpeedCfg.APIKey != "" {
		ps, err = pagespeed.New(cfg.PageSpeedCfg, logger, nil)
		if err != nil {
			return nil, fmt.Errorf("create pagespeed client: %w", err)
		}
	}

	var summarizer scan.Summarizer
	if cfg.SummarizeCfg.APIKey != "" {
		summarizer = summarize.New(cfg.SummarizeCfg, logger, nil)
	}

	return &Runner{
		cfg:     cfg,
		scanner: scan.NewScanner(cfg.ScanCfg, wc, ps, summarizer, logger),
		store:   st,
		limiter: ratelimit.New(cfg.RateLimitCfg, logger),
		logger:  logger.With(logging.Field{Key: "component", Value: "runner"}),
		jobs:    make(map[string]*Job),
	}, nil
}

// NewRunnerWithHTTPClient is the test hook: same wiring, shared http.Client
// so httptest servers can serve every outbound call.
func NewRunnerWithHTTPClient(cfg *Config, st *store.Store, logger logging.Logger, hc *http.Client) (*Runner, error) {
	runner, err := NewRunner(cfg, st, logger)
	if err != nil {
		return nil, err
	}
	wc, err := webclient.New(cfg.WebclientCfg, logger, hc)
	if err != nil {
		return nil, err
	}
	var ps *pagespeed.Client
	if cfg.PageSpeedCfg.APIKey != "" {
		if ps, err = pagespeed.New(cfg.PageSpeedCfg, logger, hc); err != nil {
			return nil, err
		}
	}
	var summarizer scan.Summarizer
	if cfg.SummarizeCfg.APIKey != "" {
		summarizer = summarize.New(cfg.SummarizeCfg, logger, hc)
	}
	runner.scanner = scan.NewScanner(cfg.ScanCfg, wc, ps, summarizer, logger)
	return runner, nil
}

// StartScan validates the URL, checks the host ceiling and launches the
// pipeline in the background. The rate-limit check happens before any
// analyzer runs; a rejection is ErrRateLimited, never a failed job.
func (r *Runner) StartScan(rawURL string) (*Job, error) {
	target, err := scan.NewTarget(uuid.New().String(), rawURL)
	if err != nil {
		return nil, err
	}

	if !r.limiter.Allow(target.Host) {
		return nil, fmt.Errorf("%w: host %s", ErrRateLimited, target.Host)
	}

	job := &Job{
		ID:        target.ScanID,
		URL:       target.URL,
		Host:      target.Host,
		Status:    JobRunning,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, 64),
	}
	r.setJob(job)
	r.emit(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobRunning})

	// The scan outlives the submitting HTTP request.
	go r.run(context.Background(), job, target)

	return job, nil
}

// RunSync executes one scan in the calling goroutine and returns the
// persisted record. Used by the one-off CLI path; the HTTP path goes through
// StartScan.
func (r *Runner) RunSync(ctx context.Context, rawURL string) (*store.Record, error) {
	target, err := scan.NewTarget(uuid.New().String(), rawURL)
	if err != nil {
		return nil, err
	}
	if !r.limiter.Allow(target.Host) {
		return nil, fmt.Errorf("%w: host %s", ErrRateLimited, target.Host)
	}

	report := r.scanner.Scan(ctx, target, nil)
	return r.store.Save(ctx, target.Host, report)
}

func (r *Runner) run(ctx context.Context, job *Job, target *scan.Target) {
	report := r.scanner.Scan(ctx, target, func(stage scan.Stage, status scan.Status) {
		r.emit(job, JobEvent{
			JobID:      job.ID,
			Type:       JobEventProgress,
			Stage:      string(stage),
			StageState: status,
		})
	})

	rec, err := r.store.Save(ctx, target.Host, report)

	r.jobsMu.Lock()
	job.EndedAt = time.Now().UTC()
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobDone
		job.Record = rec
	}
	r.jobsMu.Unlock()

	if err != nil {
		r.logger.Error("persisting scan failed",
			logging.Field{Key: "scan_id", Value: job.ID},
			logging.Field{Key: "error", Value: err.Error()})
		r.emit(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobFailed, Error: err.Error()})
	} else {
		r.emit(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobDone})
		r.emit(job, JobEvent{JobID: job.ID, Type: JobEventResult, Record: rec})
	}
	close(job.Events)
}

// emit sends without blocking; slow websocket readers drop events rather
// than stalling the pipeline.
func (r *Runner) emit(job *Job, ev JobEvent) {
	select {
	case job.Events <- ev:
	default:
	}
}

func (r *Runner) setJob(job *Job) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	r.pruneJobsLocked(time.Now())
	r.jobs[job.ID] = job
}

// pruneJobsLocked evicts finished jobs past the retention period. Their
// records stay in the store; only the in-memory handle goes away.
func (r *Runner) pruneJobsLocked(now time.Time) {
	cutoff := now.Add(-r.cfg.JobRetention)
	for id, job := range r.jobs {
		if job.Status != JobDone && job.Status != JobFailed {
			continue
		}
		if job.EndedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

// Job returns the in-memory job for id, if any.
func (r *Runner) Job(id string) (*Job, bool) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Snapshot returns a serializable copy of a job's current state. The run
// goroutine mutates jobs under the same lock, so handlers must not hold the
// *Job across a response.
func (r *Runner) Snapshot(id string) (Job, bool) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	cp := *job
	cp.Events = nil
	return cp, true
}

// Store exposes the scan store for read paths.
func (r *Runner) Store() *store.Store {
	return r.store
}
