package scan

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

const maxEndpoints = 10

var scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>(.*?)</script>`)

// The three client-side call idioms recognized, each capturing the first
// quoted literal of the call.
var callSitePatterns = []*regexp.Regexp{
	regexp.MustCompile("fetch\\(\\s*['\"`]([^'\"`]+)['\"`]"),
	regexp.MustCompile("axios\\.(?:get|post|put|delete|patch)\\s*\\(\\s*['\"`]([^'\"`]+)['\"`]"),
	regexp.MustCompile("\\$\\.ajax\\([^'\"`]*['\"`]([^'\"`]+)['\"`]"),
}

// APISurfaceAnalyzer enumerates likely backend endpoints by matching HTTP
// call sites in inline script text. Only relative paths (leading "/") are
// kept, treated as same-origin endpoints.
type APISurfaceAnalyzer struct {
	wc      *webclient.Client
	timeout time.Duration
	logger  logging.Logger
}

func NewAPISurfaceAnalyzer(wc *webclient.Client, timeout time.Duration, logger logging.Logger) *APISurfaceAnalyzer {
	return &APISurfaceAnalyzer{
		wc:      wc,
		timeout: timeout,
		logger:  logger.With(logging.Field{Key: "analyzer", Value: "api-surface"}),
	}
}

func (a *APISurfaceAnalyzer) Analyze(ctx context.Context, target *Target) Result[APIReport] {
	resp, err := a.wc.Get(ctx, target.URL, a.timeout)
	if err != nil {
		return Failed[APIReport](err.Error())
	}

	return Completed(extractEndpoints(string(resp.Body)))
}

// extractEndpoints scans inline scripts idiom by idiom. Repeated literals
// are reported as often as they appear (no dedupe, a known limitation), and
// the method is always GET since literal matching cannot see the real verb.
func extractEndpoints(body string) APIReport {
	var sb strings.Builder
	for _, m := range scriptBlockPattern.FindAllStringSubmatch(body, -1) {
		sb.WriteString(m[1])
		sb.WriteString("\n")
	}
	scripts := sb.String()

	endpoints := []Endpoint{}
	for _, pattern := range callSitePatterns {
		for _, m := range pattern.FindAllStringSubmatch(scripts, -1) {
			if len(endpoints) >= maxEndpoints {
				return APIReport{Endpoints: endpoints}
			}
			if !strings.HasPrefix(m[1], "/") {
				continue
			}
			endpoints = append(endpoints, Endpoint{Path: m[1], Method: "GET"})
		}
	}

	return APIReport{Endpoints: endpoints}
}
