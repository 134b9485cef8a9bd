package scan

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

// Signature categories.
const (
	categoryFramework = "framework"
	categoryLibrary   = "library"
	categoryCMS       = "cms"
	categoryCSS       = "css"
	categoryServer    = "server"
)

var (
	ngVersionPattern   = regexp.MustCompile(`ng-version="([^"]+)"`)
	ngAttrPattern      = regexp.MustCompile(`\bng-[a-z]+(?:=|>)`)
	wpGeneratorPattern = regexp.MustCompile(`(?i)content="WordPress ([0-9.]+)`)
	wpThemeVerPattern  = regexp.MustCompile(`(?i)wp-content/themes/[^"']*[?&]ver=([0-9.]+)`)
	jqueryVerPattern   = regexp.MustCompile(`(?i)jquery[-.]([0-9]+(?:\.[0-9]+)*)(?:\.min)?\.js`)
	sveltePattern      = regexp.MustCompile(`class="[^"]*\bsvelte-`)
)

// TechStackAnalyzer fingerprints frameworks, libraries, CMSes and servers
// from body text and response headers.
type TechStackAnalyzer struct {
	wc      *webclient.Client
	timeout time.Duration
	logger  logging.Logger
}

func NewTechStackAnalyzer(wc *webclient.Client, timeout time.Duration, logger logging.Logger) *TechStackAnalyzer {
	return &TechStackAnalyzer{
		wc:      wc,
		timeout: timeout,
		logger:  logger.With(logging.Field{Key: "analyzer", Value: "techstack"}),
	}
}

func (a *TechStackAnalyzer) Analyze(ctx context.Context, target *Target) Result[TechStackReport] {
	resp, err := a.wc.Get(ctx, target.URL, a.timeout)
	if err != nil {
		return Failed[TechStackReport](err.Error())
	}

	return Completed(detectTechnologies(string(resp.Body), resp.Headers))
}

// detectTechnologies runs the signature table in a fixed order. Within one
// family the high-confidence specific signature is tried first and the
// generic one only when it misses; across families every match accumulates,
// so a page can register several unrelated detections. The function is pure:
// the same body and headers always yield the same set in the same order.
func detectTechnologies(body string, headers http.Header) TechStackReport {
	lower := strings.ToLower(body)
	detected := []TechSignature{}

	add := func(sig TechSignature) {
		detected = append(detected, sig)
	}

	// React family: Next.js beats generic React.
	switch {
	case strings.Contains(body, "__NEXT_DATA__") || strings.Contains(body, "/_next/"):
		add(TechSignature{Name: "Next.js", Confidence: ConfidenceHigh, Category: categoryFramework})
	case strings.Contains(body, "data-reactroot") || strings.Contains(lower, "react-dom") || strings.Contains(body, "__REACT_DEVTOOLS"):
		add(TechSignature{Name: "React", Confidence: ConfidenceMedium, Category: categoryFramework})
	}

	// Vue family: Nuxt beats generic Vue.
	switch {
	case strings.Contains(body, "__NUXT__") || strings.Contains(body, "/_nuxt/"):
		add(TechSignature{Name: "Nuxt", Confidence: ConfidenceHigh, Category: categoryFramework})
	case strings.Contains(body, "data-v-") || strings.Contains(lower, "vue.js") || strings.Contains(lower, "vue.min.js"):
		add(TechSignature{Name: "Vue.js", Confidence: ConfidenceMedium, Category: categoryFramework})
	}

	// Angular: ng-version carries the exact release.
	if m := ngVersionPattern.FindStringSubmatch(body); m != nil {
		add(TechSignature{Name: "Angular", Confidence: ConfidenceHigh, Version: m[1], Category: categoryFramework})
	} else if ngAttrPattern.MatchString(body) {
		add(TechSignature{Name: "Angular", Confidence: ConfidenceMedium, Category: categoryFramework})
	}

	// WordPress: asset paths are a strong signal; version from the generator
	// meta tag, else the theme asset ver parameter.
	if strings.Contains(lower, "wp-content") || strings.Contains(lower, "wp-includes") {
		version := ""
		if m := wpGeneratorPattern.FindStringSubmatch(body); m != nil {
			version = m[1]
		} else if m := wpThemeVerPattern.FindStringSubmatch(body); m != nil {
			version = m[1]
		}
		add(TechSignature{Name: "WordPress", Confidence: ConfidenceHigh, Version: version, Category: categoryCMS})
	}

	if strings.Contains(lower, `content="drupal`) || strings.Contains(lower, "/sites/default/files") {
		add(TechSignature{Name: "Drupal", Confidence: ConfidenceHigh, Category: categoryCMS})
	}

	if sveltePattern.MatchString(body) {
		add(TechSignature{Name: "Svelte", Confidence: ConfidenceMedium, Category: categoryFramework})
	}

	if m := jqueryVerPattern.FindStringSubmatch(body); m != nil {
		add(TechSignature{Name: "jQuery", Confidence: ConfidenceHigh, Version: m[1], Category: categoryLibrary})
	} else if strings.Contains(lower, "jquery") {
		add(TechSignature{Name: "jQuery", Confidence: ConfidenceMedium, Category: categoryLibrary})
	}

	// CSS frameworks: Tailwind wins when both utility vocabularies appear;
	// the Bootstrap check explicitly steps aside for it.
	hasTailwind := strings.Contains(lower, "tailwind")
	if hasTailwind {
		add(TechSignature{Name: "Tailwind CSS", Confidence: ConfidenceMedium, Category: categoryCSS})
	}
	if strings.Contains(lower, "bootstrap") && !hasTailwind {
		add(TechSignature{Name: "Bootstrap", Confidence: ConfidenceMedium, Category: categoryCSS})
	}

	// Unconditional header-derived entries.
	if poweredBy := headers.Get("X-Powered-By"); poweredBy != "" {
		add(TechSignature{Name: poweredBy, Confidence: ConfidenceHigh, Category: categoryServer})
	}
	if server := headers.Get("Server"); server != "" {
		name, version, _ := strings.Cut(server, "/")
		add(TechSignature{Name: name, Confidence: ConfidenceHigh, Version: version, Category: categoryServer})
	}
	if aspVersion := headers.Get("X-AspNet-Version"); aspVersion != "" {
		add(TechSignature{Name: "ASP.NET", Confidence: ConfidenceHigh, Version: aspVersion, Category: categoryServer})
	}

	return TechStackReport{
		Detected:      detected,
		TotalDetected: len(detected),
	}
}
