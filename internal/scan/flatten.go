package scan

// Flattened holds the convenience fields handed to the persistence layer
// alongside the full report, so dashboards can query without unpacking the
// per-analyzer payloads.
type Flattened struct {
	PerformanceScore        int      `json:"performance_score"`
	SEOScore                int      `json:"seo_score"`
	AccessibilityIssueCount int      `json:"accessibility_issue_count"`
	SecurityChecksPassed    int      `json:"security_checks_passed"`
	SecurityChecksTotal     int      `json:"security_checks_total"`
	Technologies            []string `json:"technologies"`
	ExposedEndpoints        []string `json:"exposed_endpoints"`
}

// Flatten projects the report onto its convenience fields. Failed slots
// flatten to zero values, matching the "unable to determine" rendering
// downstream.
func (r *Report) Flatten() Flattened {
	f := Flattened{
		Technologies:     []string{},
		ExposedEndpoints: []string{},
	}

	if r.Results.Performance.Status == StatusCompleted {
		perf := r.Results.Performance.Data
		f.PerformanceScore = perf.Score
		f.SEOScore = perf.LighthouseScores["seo"]
	}

	if r.Results.Accessibility.Status == StatusCompleted {
		f.AccessibilityIssueCount = len(r.Results.Accessibility.Data.Issues)
	}

	if r.Results.Security.Status == StatusCompleted {
		f.SecurityChecksPassed = r.Results.Security.Data.ChecksPassed
		f.SecurityChecksTotal = r.Results.Security.Data.ChecksPerformed
	}

	if r.Results.TechStack.Status == StatusCompleted {
		for _, sig := range r.Results.TechStack.Data.Detected {
			f.Technologies = append(f.Technologies, sig.Name)
		}
	}

	if r.Results.API.Status == StatusCompleted {
		for _, ep := range r.Results.API.Data.Endpoints {
			f.ExposedEndpoints = append(f.ExposedEndpoints, ep.Path)
		}
	}

	return f
}
