package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sitegauge/sitegauge/internal/app"
	"github.com/sitegauge/sitegauge/internal/scan"
	"github.com/sitegauge/sitegauge/internal/store"
)

func NewScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [url]",
		Short: "Run a one-off audit and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runScanOnce,
	}
}

func runScanOnce(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadApp()
	if err != nil {
		return err
	}

	st, err := store.Open(store.Config{Path: cfg.StoragePath}, logger)
	if err != nil {
		return fmt.Errorf("open scan store: %w", err)
	}
	defer st.Close()

	runner, err := app.NewRunner(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	rec, err := runner.RunSync(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printRecord(rec)
	return nil
}

func printRecord(rec *store.Record) {
	bold := color.New(color.Bold)

	bold.Printf("Scan %s\n", rec.ID)
	fmt.Printf("URL: %s\n", rec.URL)
	fmt.Printf("Overall score: %s\n", scoreColor(rec.OverallScore).Sprintf("%d/100", rec.OverallScore))
	fmt.Printf("Security: %d/%d checks passed\n", rec.SecurityChecksPassed, rec.SecurityChecksTotal)
	fmt.Printf("Accessibility issues: %d\n", rec.AccessibilityIssueCount)
	fmt.Printf("Performance: %d  SEO: %d\n", rec.PerformanceScore, rec.SEOScore)

	if len(rec.Technologies) > 0 {
		fmt.Printf("Technologies: %v\n", rec.Technologies)
	}
	if len(rec.ExposedEndpoints) > 0 {
		fmt.Printf("Endpoints seen in scripts: %v\n", rec.ExposedEndpoints)
	}

	if len(rec.TopIssues) > 0 {
		bold.Println("\nTop issues:")
		for _, issue := range rec.TopIssues {
			fmt.Printf("  %s %s: %s\n", severityColor(issue.Severity).Sprintf("[%s]", issue.Severity), issue.Category, issue.Description)
		}
	}

	if rec.Summary != nil {
		bold.Println("\nSummary:")
		fmt.Println(*rec.Summary)
		for _, r := range rec.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}
}

func severityColor(s scan.Severity) *color.Color {
	switch s {
	case scan.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case scan.SeverityHigh:
		return color.New(color.FgRed)
	case scan.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func scoreColor(score int) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen)
	case score >= 50:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
