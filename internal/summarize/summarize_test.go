package summarize

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/scan"
)

func sampleReport() *scan.Report {
	return &scan.Report{
		ScanID:       "scan-1",
		URL:          "https://example.com",
		OverallScore: 74,
		TopIssues: []scan.TopIssue{
			{Category: "Security Headers", Severity: scan.SeverityHigh, Description: "Missing Strict-Transport-Security header"},
		},
	}
}

func TestParseReply_WellFormedJSON(t *testing.T) {
	t.Parallel()
	summary := parseReply(`{"summary": "Site is mostly healthy.", "recommendations": ["Enable HSTS", "Add a CSP"]}`)

	if summary.Text == nil || *summary.Text != "Site is mostly healthy." {
		t.Errorf("unexpected text: %+v", summary.Text)
	}
	if len(summary.Recommendations) != 2 {
		t.Errorf("recommendations = %v", summary.Recommendations)
	}
}

func TestParseReply_StripsMarkdownFences(t *testing.T) {
	t.Parallel()
	raw := "```json\n{\"summary\": \"Fenced reply.\", \"recommendations\": []}\n```"
	summary := parseReply(raw)

	if summary.Text == nil || *summary.Text != "Fenced reply." {
		t.Errorf("unexpected text: %+v", summary.Text)
	}
}

func TestParseReply_PlainTextFallback(t *testing.T) {
	t.Parallel()
	summary := parseReply("The site looks fine overall, just missing a few headers.")

	if summary.Text == nil || !strings.Contains(*summary.Text, "looks fine") {
		t.Errorf("raw text should become the summary, got %+v", summary.Text)
	}
	if summary.Recommendations == nil || len(summary.Recommendations) != 0 {
		t.Errorf("recommendations must be empty, not nil: %v", summary.Recommendations)
	}
}

func TestParseReply_EmptyReply(t *testing.T) {
	t.Parallel()
	summary := parseReply("   ")

	if summary.Text != nil {
		t.Errorf("expected nil text for empty reply, got %q", *summary.Text)
	}
}

func TestParseReply_MissingRecommendations(t *testing.T) {
	t.Parallel()
	summary := parseReply(`{"summary": "Just a summary."}`)

	if summary.Recommendations == nil {
		t.Error("recommendations must be an empty slice, not nil")
	}
}

func TestSummarize_NoAPIKeyIsNoOp(t *testing.T) {
	t.Parallel()
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	adapter := New(Config{BaseURL: ts.URL}, logging.NewNop(), ts.Client())
	summary := adapter.Summarize(context.Background(), sampleReport())

	if called {
		t.Error("no network call expected without an API key")
	}
	if summary.Text != nil || len(summary.Recommendations) != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestSummarize_FullRoundTrip(t *testing.T) {
	t.Parallel()
	var gotAuth string
	var gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"choices": [{"message": {"role": "assistant", "content": "{\"summary\": \"Decent site.\", \"recommendations\": [\"Enable HSTS\"]}"}}]}`)
	}))
	defer ts.Close()

	adapter := New(Config{APIKey: "sk-test", BaseURL: ts.URL}, logging.NewNop(), ts.Client())
	summary := adapter.Summarize(context.Background(), sampleReport())

	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if !strings.Contains(gotBody, "https://example.com") || !strings.Contains(gotBody, "74/100") {
		t.Errorf("prompt missing scan facts: %s", gotBody)
	}
	if summary.Text == nil || *summary.Text != "Decent site." {
		t.Errorf("unexpected summary text: %+v", summary.Text)
	}
	if len(summary.Recommendations) != 1 || summary.Recommendations[0] != "Enable HSTS" {
		t.Errorf("unexpected recommendations: %v", summary.Recommendations)
	}
}

func TestSummarize_UpstreamFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	adapter := New(Config{APIKey: "sk-test", BaseURL: ts.URL}, logging.NewNop(), ts.Client())
	summary := adapter.Summarize(context.Background(), sampleReport())

	if summary.Text != nil {
		t.Errorf("expected degraded empty summary, got %+v", summary)
	}
	if summary.Recommendations == nil {
		t.Error("recommendations must be an empty slice, not nil")
	}
}

func TestBuildPrompt_IncludesTopIssues(t *testing.T) {
	t.Parallel()
	prompt := buildPrompt(sampleReport())

	if !strings.Contains(prompt, "Missing Strict-Transport-Security header") {
		t.Error("prompt missing the top issue")
	}
	if !strings.Contains(prompt, "Overall score: 74/100") {
		t.Error("prompt missing the overall score")
	}
	if !strings.Contains(prompt, `"recommendations"`) {
		t.Error("prompt missing the reply shape instruction")
	}
}
