// Package pagespeed wraps the PageSpeed Insights v5 API. The scan pipeline
// treats it as an opaque scoring service: one call in, one mapped report out.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
)

const defaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// categories requested on every run.
var categories = []string{"performance", "accessibility", "best-practices", "seo"}

// opportunityAudits is the fixed allow-list of improvement audits reported
// as opportunities, in evaluation order.
var opportunityAudits = []string{
	"render-blocking-resources",
	"unused-css-rules",
	"unused-javascript",
	"modern-image-formats",
	"offscreen-images",
	"uses-optimized-images",
	"uses-text-compression",
	"uses-responsive-images",
}

// diagnosticAudits is the fixed allow-list of issue audits reported as
// diagnostics, in evaluation order.
var diagnosticAudits = []string{
	"mainthread-work-breakdown",
	"bootup-time",
	"dom-size",
	"third-party-summary",
	"font-display",
	"uses-long-cache-ttl",
	"largest-contentful-paint-element",
}

const maxAuditEntries = 5

type Config struct {
	// APIKey enables the client. Empty means the external strategy is off.
	APIKey string

	// BaseURL overrides the API endpoint; tests point it at a fake server.
	BaseURL string

	// Strategy is the Lighthouse form factor, "mobile" by default.
	Strategy string

	// Timeout bounds the whole API call.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Strategy == "" {
		c.Strategy = "mobile"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// Metrics is the normalized core-web-vitals record. Times in milliseconds;
// CumulativeLayoutShift is unitless, rounded to 3 decimals.
type Metrics struct {
	FirstContentfulPaintMS   float64
	LargestContentfulPaintMS float64
	TimeToInteractiveMS      float64
	TotalBlockingTimeMS      float64
	CumulativeLayoutShift    float64
	SpeedIndexMS             float64
}

// Opportunity names a failing improvement audit with estimated savings.
type Opportunity struct {
	Title     string
	SavingsMS float64
}

// Report is the mapped result of one API run.
type Report struct {
	// CategoryScores holds 0-100 integer scores per requested category.
	CategoryScores map[string]int
	Metrics        Metrics
	Opportunities  []Opportunity
	Diagnostics    []string
}

// Client calls the PageSpeed API with a configured key.
type Client struct {
	cfg    Config
	client *http.Client
	logger logging.Logger
}

// New builds a Client. Returns an error when no API key is configured;
// callers that want the fallback-only pipeline simply pass a nil Client to
// the performance analyzer.
func New(cfg Config, logger logging.Logger, httpClient *http.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pagespeed: no API key configured")
	}
	cfg.applyDefaults()

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		cfg:    cfg,
		client: httpClient,
		logger: logger.With(logging.Field{Key: "component", Value: "pagespeed"}),
	}, nil
}

// API response subset. Scores come back 0-1; audits carry optional scores
// and numeric values.
type apiResponse struct {
	LighthouseResult struct {
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
		Audits map[string]apiAudit `json:"audits"`
	} `json:"lighthouseResult"`
}

type apiAudit struct {
	Title        string   `json:"title"`
	Score        *float64 `json:"score"`
	NumericValue float64  `json:"numericValue"`
	Details      struct {
		OverallSavingsMs float64 `json:"overallSavingsMs"`
	} `json:"details"`
}

// Run scores targetURL and maps the response into a Report.
func (c *Client) Run(ctx context.Context, targetURL string) (*Report, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("url", targetURL)
	q.Set("key", c.cfg.APIKey)
	q.Set("strategy", c.cfg.Strategy)
	for _, cat := range categories {
		q.Add("category", cat)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("pagespeed: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pagespeed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pagespeed: unexpected status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("pagespeed: decode response: %w", err)
	}

	report := c.mapResponse(&payload)
	c.logger.Debug("pagespeed run complete",
		logging.Field{Key: "url", Value: targetURL},
		logging.Field{Key: "performance", Value: report.CategoryScores["performance"]})
	return report, nil
}

func (c *Client) mapResponse(payload *apiResponse) *Report {
	lr := payload.LighthouseResult

	scores := make(map[string]int, len(categories))
	for _, cat := range categories {
		if entry, ok := lr.Categories[cat]; ok && entry.Score != nil {
			scores[cat] = int(math.Round(*entry.Score * 100))
		}
	}

	metric := func(id string) float64 {
		return lr.Audits[id].NumericValue
	}
	metrics := Metrics{
		FirstContentfulPaintMS:   metric("first-contentful-paint"),
		LargestContentfulPaintMS: metric("largest-contentful-paint"),
		TimeToInteractiveMS:      metric("interactive"),
		TotalBlockingTimeMS:      metric("total-blocking-time"),
		CumulativeLayoutShift:    math.Round(metric("cumulative-layout-shift")*1000) / 1000,
		SpeedIndexMS:             metric("speed-index"),
	}

	var opportunities []Opportunity
	for _, id := range opportunityAudits {
		if len(opportunities) >= maxAuditEntries {
			break
		}
		audit, ok := lr.Audits[id]
		if !ok || audit.Score == nil || *audit.Score >= 1 {
			continue
		}
		opportunities = append(opportunities, Opportunity{
			Title:     audit.Title,
			SavingsMS: audit.Details.OverallSavingsMs,
		})
	}

	var diagnostics []string
	for _, id := range diagnosticAudits {
		if len(diagnostics) >= maxAuditEntries {
			break
		}
		audit, ok := lr.Audits[id]
		if !ok || audit.Score == nil || *audit.Score >= 1 {
			continue
		}
		diagnostics = append(diagnostics, audit.Title)
	}

	return &Report{
		CategoryScores: scores,
		Metrics:        metrics,
		Opportunities:  opportunities,
		Diagnostics:    diagnostics,
	}
}
