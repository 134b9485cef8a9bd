package scan

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

const categoryAccessibility = "Accessibility"

const (
	wcagLevelFailsA  = "Fails Level A"
	wcagLevelPassesA = "Passes Level A (potential AA issues)"
	wcagLevelUnknown = "Unable to determine"
	defaultDeduction = 10
	inputLabelSlack  = 2
)

// deductionFor maps issue severity to score deduction points.
func deductionFor(s Severity) int {
	switch s {
	case SeverityCritical:
		return 25
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 8
	case SeverityLow:
		return 3
	default:
		return defaultDeduction
	}
}

var skipLinkPattern = regexp.MustCompile(`(?i)href=["']#(main|content|skip)`)

// AccessibilityAnalyzer runs 8 independent WCAG heuristics over the page
// markup. Each contributes at most one issue with a fixed severity; the
// score starts at 100 and loses points per issue severity.
type AccessibilityAnalyzer struct {
	wc      *webclient.Client
	timeout time.Duration
	logger  logging.Logger
}

func NewAccessibilityAnalyzer(wc *webclient.Client, timeout time.Duration, logger logging.Logger) *AccessibilityAnalyzer {
	return &AccessibilityAnalyzer{
		wc:      wc,
		timeout: timeout,
		logger:  logger.With(logging.Field{Key: "analyzer", Value: "accessibility"}),
	}
}

// Analyze fetches the target and evaluates the heuristics. Any HTTP response
// completes; only a fetch failure fails the slot.
func (a *AccessibilityAnalyzer) Analyze(ctx context.Context, target *Target) Result[AccessibilityReport] {
	resp, err := a.wc.Get(ctx, target.URL, a.timeout)
	if err != nil {
		return FailedWith(AccessibilityReport{
			Issues:    []Issue{},
			Score:     0,
			WCAGLevel: wcagLevelUnknown,
		}, err.Error())
	}

	return Completed(evaluateAccessibility(resp.Body))
}

func evaluateAccessibility(body []byte) AccessibilityReport {
	issues := []Issue{}

	addIssue := func(severity Severity, description string, count int, wcag string) {
		issues = append(issues, Issue{
			Severity:      severity,
			Category:      categoryAccessibility,
			Description:   description,
			Count:         count,
			WCAGReference: wcag,
		})
	}

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if docErr == nil {
		// 1. Images without alt text.
		missingAlt := 0
		doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
			if _, ok := sel.Attr("alt"); !ok {
				missingAlt++
			}
		})
		if missingAlt > 0 {
			addIssue(SeverityCritical, "Images missing alt attributes", missingAlt, "WCAG 1.1.1")
		}

		// 2. Document language.
		if lang, ok := doc.Find("html").Attr("lang"); !ok || strings.TrimSpace(lang) == "" {
			addIssue(SeverityHigh, "Missing lang attribute on <html> element", 0, "WCAG 3.1.1")
		}

		// 3. Buttons with no accessible text.
		emptyButtons := 0
		doc.Find("button").Each(func(_ int, sel *goquery.Selection) {
			if strings.TrimSpace(sel.Text()) == "" {
				emptyButtons++
			}
		})
		if emptyButtons > 0 {
			addIssue(SeverityCritical, "Buttons with no text content", emptyButtons, "WCAG 4.1.2")
		}

		// 4. Inputs outnumbering labels. A proxy for unlabeled form fields,
		// not a true for/id association check; the slack absorbs search
		// boxes and submit buttons.
		inputCount := doc.Find("input").Length()
		labelCount := doc.Find("label").Length()
		if inputCount > labelCount+inputLabelSlack {
			addIssue(SeverityHigh, "Form inputs likely missing labels", inputCount-labelCount, "WCAG 3.3.2")
		}

		// 5. Heading structure.
		h1Count := doc.Find("h1").Length()
		otherHeadings := doc.Find("h2, h3, h4, h5, h6").Length()
		if h1Count == 0 && otherHeadings > 0 {
			addIssue(SeverityMedium, "Page uses headings but has no <h1>", 0, "WCAG 1.3.1")
		} else if h1Count > 1 {
			addIssue(SeverityMedium, "Multiple <h1> elements on page", h1Count, "WCAG 1.3.1")
		}

		// 6. Links with no text.
		emptyLinks := 0
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			if strings.TrimSpace(sel.Text()) == "" {
				emptyLinks++
			}
		})
		if emptyLinks > 0 {
			addIssue(SeverityHigh, "Links with no discernible text", emptyLinks, "WCAG 2.4.4")
		}

		// 7. Skip-navigation link.
		if !skipLinkPattern.Match(body) {
			addIssue(SeverityLow, "No skip-navigation link found", 0, "WCAG 2.4.1")
		}

		// 8. Elements removed from the tab order.
		negativeTabindex := 0
		doc.Find("[tabindex]").Each(func(_ int, sel *goquery.Selection) {
			if v, _ := sel.Attr("tabindex"); strings.HasPrefix(strings.TrimSpace(v), "-") {
				negativeTabindex++
			}
		})
		if negativeTabindex > 0 {
			addIssue(SeverityMedium, "Elements with negative tabindex", negativeTabindex, "WCAG 2.1.1")
		}
	}

	score := 100
	failsLevelA := false
	for _, issue := range issues {
		score -= deductionFor(issue.Severity)
		if issue.Severity == SeverityCritical || issue.Severity == SeverityHigh {
			failsLevelA = true
		}
	}
	if score < 0 {
		score = 0
	}

	level := wcagLevelPassesA
	if failsLevelA {
		level = wcagLevelFailsA
	}

	return AccessibilityReport{
		Issues:    issues,
		Score:     score,
		WCAGLevel: level,
	}
}
