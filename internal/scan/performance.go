package scan

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/pagespeed"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

// PerformanceAnalyzer tries the external page-speed API first and falls back
// to a timed basic scan. The two strategies are never attempted in parallel;
// an external failure degrades silently (logged, never user-facing).
type PerformanceAnalyzer struct {
	wc           *webclient.Client
	ps           *pagespeed.Client // nil when no API key is configured
	basicTimeout time.Duration
	logger       logging.Logger
}

func NewPerformanceAnalyzer(wc *webclient.Client, ps *pagespeed.Client, basicTimeout time.Duration, logger logging.Logger) *PerformanceAnalyzer {
	return &PerformanceAnalyzer{
		wc:           wc,
		ps:           ps,
		basicTimeout: basicTimeout,
		logger:       logger.With(logging.Field{Key: "analyzer", Value: "performance"}),
	}
}

// Analyze produces a PerformanceReport from whichever strategy succeeds.
func (a *PerformanceAnalyzer) Analyze(ctx context.Context, target *Target) Result[PerformanceReport] {
	if a.ps != nil {
		report, err := a.ps.Run(ctx, target.URL)
		if err == nil {
			return Completed(mapPageSpeedReport(report))
		}
		a.logger.Warn("page-speed API failed, falling back to basic scan",
			logging.Field{Key: "url", Value: target.URL},
			logging.Field{Key: "error", Value: err.Error()})
	}

	return a.basicScan(ctx, target)
}

func mapPageSpeedReport(r *pagespeed.Report) PerformanceReport {
	opportunities := make([]Opportunity, 0, len(r.Opportunities))
	for _, o := range r.Opportunities {
		opportunities = append(opportunities, Opportunity{Title: o.Title, SavingsMS: o.SavingsMS})
	}

	return PerformanceReport{
		Source:           SourcePageSpeed,
		Score:            r.CategoryScores["performance"],
		LighthouseScores: r.CategoryScores,
		CoreWebVitals: &WebVitals{
			FirstContentfulPaintMS:   r.Metrics.FirstContentfulPaintMS,
			LargestContentfulPaintMS: r.Metrics.LargestContentfulPaintMS,
			TimeToInteractiveMS:      r.Metrics.TimeToInteractiveMS,
			TotalBlockingTimeMS:      r.Metrics.TotalBlockingTimeMS,
			CumulativeLayoutShift:    r.Metrics.CumulativeLayoutShift,
			SpeedIndexMS:             r.Metrics.SpeedIndexMS,
		},
		Opportunities: opportunities,
		Diagnostics:   r.Diagnostics,
	}
}

var (
	imgTagPattern        = regexp.MustCompile(`(?i)<img\b`)
	scriptTagPattern     = regexp.MustCompile(`(?i)<script\b`)
	stylesheetTagPattern = regexp.MustCompile(`(?i)<link\b[^>]*\brel=["']?stylesheet`)
)

// basicScan measures wall-clock load time and counts page resources. The
// synthesized lighthouse_scores keep the output shape uniform with the
// external strategy for downstream consumers.
func (a *PerformanceAnalyzer) basicScan(ctx context.Context, target *Target) Result[PerformanceReport] {
	resp, err := a.wc.Get(ctx, target.URL, a.basicTimeout)
	if err != nil {
		return Failed[PerformanceReport](err.Error())
	}

	body := string(resp.Body)
	loadMS := resp.Duration.Milliseconds()

	resources := &ResourceCounts{
		Images:      len(imgTagPattern.FindAllStringIndex(body, -1)),
		Scripts:     len(scriptTagPattern.FindAllStringIndex(body, -1)),
		Stylesheets: len(stylesheetTagPattern.FindAllStringIndex(body, -1)),
	}

	encoding := strings.ToLower(resp.Headers.Get("Content-Encoding"))
	compressed := strings.Contains(encoding, "gzip") || strings.Contains(encoding, "br")
	cached := resp.Headers.Get("Cache-Control") != ""

	score := 100
	switch {
	case loadMS > 3000:
		score -= 30
	case loadMS > 1500:
		score -= 15
	}
	if resources.Images > 20 {
		score -= 10
	}
	if resources.Scripts > 15 {
		score -= 10
	}
	if resources.Stylesheets > 5 {
		score -= 5
	}
	if !compressed {
		score -= 15
	}
	if !cached {
		score -= 10
	}
	if score < 0 {
		score = 0
	}

	seo := score - 10
	if seo < 0 {
		seo = 0
	}

	return Completed(PerformanceReport{
		Source: SourceBasic,
		Score:  score,
		LighthouseScores: map[string]int{
			"performance": score,
			"seo":         seo,
		},
		LoadTimeMS:         loadMS,
		Resources:          resources,
		CompressionEnabled: compressed,
		CachingEnabled:     cached,
	})
}
