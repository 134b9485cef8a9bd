// Package summarize turns a finished scan report into a natural-language
// summary via an external text-completion API. The step is strictly
// best-effort: missing key, transport failure or an unparseable reply all
// degrade to an empty Summary, never an error.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/scan"
)

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"

type Config struct {
	// APIKey enables the adapter; empty means Summarize returns the empty
	// Summary without a network call.
	APIKey string

	// BaseURL overrides the completion endpoint; tests point it at a fake.
	BaseURL string

	// Model names the completion model.
	Model string

	// Timeout bounds the completion call.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Adapter implements scan.Summarizer against a chat-completion API.
type Adapter struct {
	cfg    Config
	client *http.Client
	logger logging.Logger
}

// New builds an Adapter. It is always constructible; a missing API key just
// disables the call.
func New(cfg Config, logger logging.Logger, httpClient *http.Client) *Adapter {
	cfg.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Adapter{
		cfg:    cfg,
		client: httpClient,
		logger: logger.With(logging.Field{Key: "component", Value: "summarize"}),
	}
}

func emptySummary() scan.Summary {
	return scan.Summary{Text: nil, Recommendations: []string{}}
}

// Summarize builds the prompt, calls the completion API and parses the
// JSON-shaped reply. Every failure path returns a valid (possibly empty)
// Summary; this step can never fail the scan.
func (a *Adapter) Summarize(ctx context.Context, report *scan.Report) scan.Summary {
	if a.cfg.APIKey == "" {
		return emptySummary()
	}

	raw, err := a.complete(ctx, buildPrompt(report))
	if err != nil {
		a.logger.Warn("summarization degraded to no-op",
			logging.Field{Key: "scan_id", Value: report.ScanID},
			logging.Field{Key: "error", Value: err.Error()})
		return emptySummary()
	}

	return parseReply(raw)
}

// buildPrompt renders the fixed template: target, score, per-category issue
// counts and the top-issues list.
func buildPrompt(report *scan.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a website audit assistant. Summarize this scan for a site owner.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", report.URL)
	fmt.Fprintf(&b, "Overall score: %d/100\n", report.OverallScore)

	if report.Results.Security.Status == scan.StatusCompleted {
		fmt.Fprintf(&b, "Security issues: %d\n", len(report.Results.Security.Data.Issues))
	}
	if report.Results.Accessibility.Status == scan.StatusCompleted {
		fmt.Fprintf(&b, "Accessibility issues: %d\n", len(report.Results.Accessibility.Data.Issues))
	}
	if report.Results.Performance.Status == scan.StatusCompleted {
		fmt.Fprintf(&b, "Performance score: %d\n", report.Results.Performance.Data.Score)
	}

	if len(report.TopIssues) > 0 {
		b.WriteString("\nTop issues:\n")
		for _, issue := range report.TopIssues {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", issue.Severity, issue.Category, issue.Description)
		}
	}

	b.WriteString("\nReply with JSON only, shaped as ")
	b.WriteString(`{"summary": "...", "recommendations": ["...", "..."]}`)
	b.WriteString(". Keep the summary under 120 words.")

	return b.String()
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

func (a *Adapter) complete(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(completionRequest{
		Model:    a.cfg.Model,
		Messages: []completionMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}

	return decoded.Choices[0].Message.Content, nil
}

// parseReply strips Markdown fences and decodes the JSON shape. When the
// reply is not valid JSON the raw text becomes the summary.
func parseReply(raw string) scan.Summary {
	text := stripFences(raw)

	var parsed struct {
		Summary         string   `json:"summary"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil || parsed.Summary == "" {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return emptySummary()
		}
		return scan.Summary{Text: &trimmed, Recommendations: []string{}}
	}

	recs := parsed.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return scan.Summary{Text: &parsed.Summary, Recommendations: recs}
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
