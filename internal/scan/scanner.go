package scan

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/pagespeed"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

// Aggregation weights. Only completed analyzers contribute their weight.
const (
	weightSecurity      = 0.30
	weightPerformance   = 0.25
	weightAccessibility = 0.25
	weightMarkup        = 0.10
	weightAPI           = 0.10
)

// Fixed sub-scores for analyzers without a native 0-100 scale. The markup
// values are a crude interactivity proxy, and the API sub-score is a flat
// placeholder: completion is the only signal it carries.
const (
	markupScoreWithButtons = 80
	markupScoreNoButtons   = 50
	apiScore               = 70
)

const maxTopIssues = 10
const poorPerformanceThreshold = 50

// Stage names an analyzer for progress reporting. Stages always run in the
// order listed; none depends on another's output, so order only affects
// logs and latency.
type Stage string

const (
	StageMarkup        Stage = "markup"
	StageAPI           Stage = "api"
	StageSecurity      Stage = "security"
	StagePerformance   Stage = "performance"
	StageAccessibility Stage = "accessibility"
	StageTechStack     Stage = "techstack"
)

// ProgressFunc observes per-analyzer transitions during a scan.
type ProgressFunc func(stage Stage, status Status)

// Summary is the optional natural-language summary. It is always a valid
// value: a nil Text with no recommendations means the step was skipped or
// degraded, never an error.
type Summary struct {
	Text            *string  `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// Summarizer turns a finished report into a Summary. Implementations must
// not fail: any upstream problem degrades to an empty Summary.
type Summarizer interface {
	Summarize(ctx context.Context, report *Report) Summary
}

// Report is the immutable outcome of one scan run, handed off whole to the
// persistence boundary.
type Report struct {
	ScanID       string     `json:"scan_id"`
	URL          string     `json:"url"`
	Results      Results    `json:"results"`
	OverallScore int        `json:"overall_score"`
	TopIssues    []TopIssue `json:"top_issues"`
	Summary      *Summary   `json:"summary,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
}

// Scanner runs the six analyzers sequentially with isolated failures, then
// aggregates the overall score and top issues, then attempts summarization.
type Scanner struct {
	markup        *MarkupAnalyzer
	apiSurface    *APISurfaceAnalyzer
	security      *SecurityAnalyzer
	performance   *PerformanceAnalyzer
	accessibility *AccessibilityAnalyzer
	techStack     *TechStackAnalyzer
	summarizer    Summarizer
	logger        logging.Logger
}

// NewScanner wires the pipeline. ps may be nil (basic performance fallback
// only); summarizer may be nil (no summary step).
func NewScanner(cfg Config, wc *webclient.Client, ps *pagespeed.Client, summarizer Summarizer, logger logging.Logger) *Scanner {
	cfg.applyDefaults()
	componentLogger := logger.With(logging.Field{Key: "component", Value: "scanner"})

	return &Scanner{
		markup:        NewMarkupAnalyzer(wc, cfg.ContentTimeout, componentLogger),
		apiSurface:    NewAPISurfaceAnalyzer(wc, cfg.ContentTimeout, componentLogger),
		security:      NewSecurityAnalyzer(wc, cfg.ContentTimeout, componentLogger),
		performance:   NewPerformanceAnalyzer(wc, ps, cfg.BasicPerfTimeout, componentLogger),
		accessibility: NewAccessibilityAnalyzer(wc, cfg.ContentTimeout, componentLogger),
		techStack:     NewTechStackAnalyzer(wc, cfg.ContentTimeout, componentLogger),
		summarizer:    summarizer,
		logger:        componentLogger,
	}
}

// Scan runs the full pipeline against target. It never returns an error: a
// failing analyzer only fails its own slot, and the report is complete even
// when every slot failed. progress may be nil.
func (s *Scanner) Scan(ctx context.Context, target *Target, progress ProgressFunc) *Report {
	report := &Report{
		ScanID:    target.ScanID,
		URL:       target.URL,
		Results:   newResults(),
		StartedAt: time.Now().UTC(),
	}

	notify := func(stage Stage, status Status) {
		if progress != nil {
			progress(stage, status)
		}
	}

	notify(StageMarkup, StatusPending)
	report.Results.E2E = runIsolated(s.logger, StageMarkup, func() Result[MarkupReport] {
		return s.markup.Analyze(ctx, target)
	})
	notify(StageMarkup, report.Results.E2E.Status)

	notify(StageAPI, StatusPending)
	report.Results.API = runIsolated(s.logger, StageAPI, func() Result[APIReport] {
		return s.apiSurface.Analyze(ctx, target)
	})
	notify(StageAPI, report.Results.API.Status)

	notify(StageSecurity, StatusPending)
	report.Results.Security = runIsolated(s.logger, StageSecurity, func() Result[SecurityReport] {
		return s.security.Analyze(ctx, target)
	})
	notify(StageSecurity, report.Results.Security.Status)

	notify(StagePerformance, StatusPending)
	report.Results.Performance = runIsolated(s.logger, StagePerformance, func() Result[PerformanceReport] {
		return s.performance.Analyze(ctx, target)
	})
	notify(StagePerformance, report.Results.Performance.Status)

	notify(StageAccessibility, StatusPending)
	report.Results.Accessibility = runIsolated(s.logger, StageAccessibility, func() Result[AccessibilityReport] {
		return s.accessibility.Analyze(ctx, target)
	})
	notify(StageAccessibility, report.Results.Accessibility.Status)

	notify(StageTechStack, StatusPending)
	report.Results.TechStack = runIsolated(s.logger, StageTechStack, func() Result[TechStackReport] {
		return s.techStack.Analyze(ctx, target)
	})
	notify(StageTechStack, report.Results.TechStack.Status)

	report.TopIssues = extractTopIssues(&report.Results)
	report.OverallScore = computeOverallScore(&report.Results)

	if s.summarizer != nil {
		summary := s.summarizer.Summarize(ctx, report)
		report.Summary = &summary
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info("scan complete",
		logging.Field{Key: "scan_id", Value: target.ScanID},
		logging.Field{Key: "url", Value: target.URL},
		logging.Field{Key: "overall_score", Value: report.OverallScore},
		logging.Field{Key: "top_issues", Value: len(report.TopIssues)})

	return report
}

// runIsolated is the failure boundary around one analyzer: a panic inside it
// becomes a Failed slot instead of aborting the scan.
func runIsolated[T any](logger logging.Logger, stage Stage, fn func() Result[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analyzer panicked",
				logging.Field{Key: "stage", Value: string(stage)},
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			res = Failed[T](fmt.Sprintf("analyzer panic: %v", r))
		}
	}()
	return fn()
}

// extractTopIssues flattens security issues, then accessibility issues
// (recategorized, message-only), then a synthetic performance issue when the
// score is poor. The sort is stable so insertion order is preserved among
// equal severities.
func extractTopIssues(results *Results) []TopIssue {
	issues := []TopIssue{}

	if results.Security.Status == StatusCompleted {
		for _, issue := range results.Security.Data.Issues {
			issues = append(issues, TopIssue{
				Category:    issue.Category,
				Severity:    issue.Severity,
				Description: issue.Description,
			})
		}
	}

	if results.Accessibility.Status == StatusCompleted {
		for _, issue := range results.Accessibility.Data.Issues {
			issues = append(issues, TopIssue{
				Category:    categoryAccessibility,
				Severity:    issue.Severity,
				Description: issue.Description,
			})
		}
	}

	if results.Performance.Status == StatusCompleted && results.Performance.Data.Score < poorPerformanceThreshold {
		issues = append(issues, TopIssue{
			Category:    "Performance",
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("Poor performance score (%d/100)", results.Performance.Data.Score),
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() < issues[j].Severity.Rank()
	})

	if len(issues) > maxTopIssues {
		issues = issues[:maxTopIssues]
	}
	return issues
}

// computeOverallScore takes the weighted mean over completed analyzers only.
// Failed or pending slots contribute neither weight nor numerator; with no
// completed analyzer at all the score is 0.
func computeOverallScore(results *Results) int {
	var sum, weight float64

	if results.Security.Status == StatusCompleted && results.Security.Data.ChecksPerformed > 0 {
		sub := float64(results.Security.Data.ChecksPassed) / float64(results.Security.Data.ChecksPerformed) * 100
		sum += weightSecurity * sub
		weight += weightSecurity
	}

	if results.Performance.Status == StatusCompleted {
		sum += weightPerformance * float64(results.Performance.Data.Score)
		weight += weightPerformance
	}

	if results.Accessibility.Status == StatusCompleted {
		sum += weightAccessibility * float64(results.Accessibility.Data.Score)
		weight += weightAccessibility
	}

	if results.E2E.Status == StatusCompleted {
		sub := markupScoreNoButtons
		if results.E2E.Data.ButtonsFound > 0 {
			sub = markupScoreWithButtons
		}
		sum += weightMarkup * float64(sub)
		weight += weightMarkup
	}

	if results.API.Status == StatusCompleted {
		sum += weightAPI * apiScore
		weight += weightAPI
	}

	if weight == 0 {
		return 0
	}
	return int(math.Round(sum / weight))
}
