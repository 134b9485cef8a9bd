package scan

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

const maxPrimaryActions = 5

// MarkupAnalyzer counts the interactive elements of the page: buttons,
// hyperlinks and forms, plus up to 5 button labels as "primary actions".
type MarkupAnalyzer struct {
	wc      *webclient.Client
	timeout time.Duration
	logger  logging.Logger
}

// NewMarkupAnalyzer builds the analyzer around a fetch client.
func NewMarkupAnalyzer(wc *webclient.Client, timeout time.Duration, logger logging.Logger) *MarkupAnalyzer {
	return &MarkupAnalyzer{
		wc:      wc,
		timeout: timeout,
		logger:  logger.With(logging.Field{Key: "analyzer", Value: "markup"}),
	}
}

// Analyze fetches the target and counts its interactive surface. A non-OK
// HTTP status is a Failed outcome, not Completed-with-zero.
func (a *MarkupAnalyzer) Analyze(ctx context.Context, target *Target) Result[MarkupReport] {
	resp, err := a.wc.Get(ctx, target.URL, a.timeout)
	if err != nil {
		return Failed[MarkupReport](err.Error())
	}
	if !resp.OK() {
		return Failed[MarkupReport](fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode))
	}

	report, err := countMarkupStructured(resp.Body)
	if err != nil {
		// Structured parse unavailable: fall back to pattern matching
		// silently, same output shape.
		a.logger.Debug("structured parse failed, using pattern fallback",
			logging.Field{Key: "error", Value: err.Error()})
		report = countMarkupPatterns(string(resp.Body))
	}

	return Completed(report)
}

// countMarkupStructured is the primary strategy: a DOM parse.
func countMarkupStructured(body []byte) (MarkupReport, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return MarkupReport{}, err
	}

	report := MarkupReport{PrimaryActions: []string{}}

	report.ButtonsFound = doc.Find("button").Length()
	report.LinksFound = doc.Find("a[href]").Length()
	report.FormsFound = doc.Find("form").Length()

	doc.Find("button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(report.PrimaryActions) >= maxPrimaryActions {
			return false
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			report.PrimaryActions = append(report.PrimaryActions, text)
		}
		return true
	})

	return report, nil
}

var (
	buttonPattern   = regexp.MustCompile(`(?is)<button\b[^>]*>(.*?)</button>`)
	linkPattern     = regexp.MustCompile(`(?i)<a\b[^>]*\bhref\s*=`)
	formPattern     = regexp.MustCompile(`(?i)<form\b`)
	innerTagPattern = regexp.MustCompile(`<[^>]+>`)
)

// countMarkupPatterns is the fallback strategy. For well-formed markup it
// reports the same counts as the structured pass; divergence is only expected
// for malformed or self-closing edge cases.
func countMarkupPatterns(body string) MarkupReport {
	report := MarkupReport{PrimaryActions: []string{}}

	buttons := buttonPattern.FindAllStringSubmatch(body, -1)
	report.ButtonsFound = len(buttons)
	report.LinksFound = len(linkPattern.FindAllStringIndex(body, -1))
	report.FormsFound = len(formPattern.FindAllStringIndex(body, -1))

	for _, m := range buttons {
		if len(report.PrimaryActions) >= maxPrimaryActions {
			break
		}
		text := strings.TrimSpace(innerTagPattern.ReplaceAllString(m[1], ""))
		if text != "" {
			report.PrimaryActions = append(report.PrimaryActions, text)
		}
	}

	return report
}
