package scan

// Status is the lifecycle state of a single analyzer slot. A slot starts
// Pending, is written exactly once by its analyzer, and is never re-entered
// for the same scan run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is the tagged per-analyzer outcome. Completed always carries a
// fully-populated payload; Failed carries an error message plus whatever
// zeroed payload the analyzer contract specifies. Modeling this as a sum
// type keeps partial payloads from leaking out of a Completed state.
type Result[T any] struct {
	Status Status `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error,omitempty"`
}

// Pending returns the initial slot state.
func Pending[T any]() Result[T] {
	return Result[T]{Status: StatusPending}
}

// Completed wraps a finished payload.
func Completed[T any](data T) Result[T] {
	return Result[T]{Status: StatusCompleted, Data: data}
}

// Failed records an analyzer failure with a zero payload.
func Failed[T any](msg string) Result[T] {
	return Result[T]{Status: StatusFailed, Error: msg}
}

// FailedWith records a failure that still carries contract-mandated payload
// content (e.g. accessibility's "Unable to determine" level).
func FailedWith[T any](data T, msg string) Result[T] {
	return Result[T]{Status: StatusFailed, Data: data, Error: msg}
}

// Severity grades an issue. It is the sole ranking key for top issues.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank maps severities to sort keys, critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Issue is a single finding from the security or accessibility analyzer.
type Issue struct {
	Severity      Severity `json:"severity"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	Count         int      `json:"count,omitempty"`
	WCAGReference string   `json:"wcag_reference,omitempty"`
}

// TopIssue is the normalized cross-analyzer projection surfaced to reports.
type TopIssue struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// MarkupReport counts the interactive surface of the page.
type MarkupReport struct {
	ButtonsFound   int      `json:"buttons_found"`
	LinksFound     int      `json:"links_found"`
	FormsFound     int      `json:"forms_found"`
	PrimaryActions []string `json:"primary_actions"`
}

// SecurityReport is the outcome of the fixed 7-signal checklist.
type SecurityReport struct {
	Issues          []Issue `json:"issues"`
	ChecksPerformed int     `json:"checks_performed"`
	ChecksPassed    int     `json:"checks_passed"`
	HTTPSEnabled    bool    `json:"https_enabled"`
}

// AccessibilityReport is the outcome of the 8 WCAG heuristics.
type AccessibilityReport struct {
	Issues    []Issue `json:"issues"`
	Score     int     `json:"score"`
	WCAGLevel string  `json:"wcag_level"`
}

// Performance sources. Downstream consumers use the tag to label fidelity.
const (
	SourcePageSpeed = "google-pagespeed"
	SourceBasic     = "basic-scan"
)

// WebVitals is the normalized core-web-vitals record mapped from the
// external page-speed API. All times are milliseconds.
type WebVitals struct {
	FirstContentfulPaintMS   float64 `json:"first_contentful_paint_ms"`
	LargestContentfulPaintMS float64 `json:"largest_contentful_paint_ms"`
	TimeToInteractiveMS      float64 `json:"time_to_interactive_ms"`
	TotalBlockingTimeMS      float64 `json:"total_blocking_time_ms"`
	CumulativeLayoutShift    float64 `json:"cumulative_layout_shift"`
	SpeedIndexMS             float64 `json:"speed_index_ms"`
}

// Opportunity names an improvement audit with estimated savings.
type Opportunity struct {
	Title     string  `json:"title"`
	SavingsMS float64 `json:"savings_ms,omitempty"`
}

// ResourceCounts holds tag counts from the basic fallback scan.
type ResourceCounts struct {
	Images      int `json:"images"`
	Scripts     int `json:"scripts"`
	Stylesheets int `json:"stylesheets"`
}

// PerformanceReport has one shape regardless of which strategy produced it;
// Source records which one did.
type PerformanceReport struct {
	Source             string          `json:"source"`
	Score              int             `json:"score"`
	LighthouseScores   map[string]int  `json:"lighthouse_scores"`
	CoreWebVitals      *WebVitals      `json:"core_web_vitals,omitempty"`
	Opportunities      []Opportunity   `json:"opportunities,omitempty"`
	Diagnostics        []string        `json:"diagnostics,omitempty"`
	LoadTimeMS         int64           `json:"load_time_ms,omitempty"`
	Resources          *ResourceCounts `json:"resources,omitempty"`
	CompressionEnabled bool            `json:"compression_enabled"`
	CachingEnabled     bool            `json:"caching_enabled"`
}

// TechSignature is one detected technology. Order in a report follows
// detection-rule evaluation order, not confidence.
type TechSignature struct {
	Name       string `json:"name"`
	Confidence string `json:"confidence_level"`
	Version    string `json:"version,omitempty"`
	Category   string `json:"category"`
}

// Confidence levels for TechSignature.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// TechStackReport lists every signature that matched.
type TechStackReport struct {
	Detected      []TechSignature `json:"detected"`
	TotalDetected int             `json:"total_detected"`
}

// Endpoint is a likely backend call site lifted from inline script text.
// Method is always GET: static literal matching cannot see the actual verb,
// even for axios.post, and that limitation is kept deliberately.
type Endpoint struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// APIReport enumerates endpoints found in inline scripts. Duplicate literals
// are reported as-is (no dedupe, a known limitation), capped at 10.
type APIReport struct {
	Endpoints []Endpoint `json:"endpoints"`
}

// Results holds one slot per analyzer kind. Created all-Pending at
// orchestration start; immutable once the scanner returns.
type Results struct {
	E2E           Result[MarkupReport]        `json:"e2e"`
	API           Result[APIReport]           `json:"api"`
	Security      Result[SecurityReport]      `json:"security"`
	Performance   Result[PerformanceReport]   `json:"performance"`
	Accessibility Result[AccessibilityReport] `json:"accessibility"`
	TechStack     Result[TechStackReport]     `json:"techStack"`
}

// newResults returns the all-Pending aggregate.
func newResults() Results {
	return Results{
		E2E:           Pending[MarkupReport](),
		API:           Pending[APIReport](),
		Security:      Pending[SecurityReport](),
		Performance:   Pending[PerformanceReport](),
		Accessibility: Pending[AccessibilityReport](),
		TechStack:     Pending[TechStackReport](),
	}
}
