// Package store persists finished scan reports. One immutable row per scan:
// the pipeline writes once and never reads back; reads serve the API layer.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/scan"
)

// ErrNotFound is returned when no scan row matches the requested id.
var ErrNotFound = errors.New("store: scan not found")

type Config struct {
	// Path is the sqlite database file. The parent directory is created if
	// missing.
	Path string
}

// Record is one persisted scan: the full report plus the flattened
// convenience fields dashboards query directly.
type Record struct {
	ID                      string          `json:"id"`
	URL                     string          `json:"url"`
	Host                    string          `json:"host"`
	OverallScore            int             `json:"overall_score"`
	PerformanceScore        int             `json:"performance_score"`
	SEOScore                int             `json:"seo_score"`
	AccessibilityIssueCount int             `json:"accessibility_issue_count"`
	SecurityChecksPassed    int             `json:"security_checks_passed"`
	SecurityChecksTotal     int             `json:"security_checks_total"`
	Technologies            []string        `json:"technologies"`
	ExposedEndpoints        []string        `json:"exposed_endpoints"`
	Results                 scan.Results    `json:"results"`
	TopIssues               []scan.TopIssue `json:"top_issues"`
	Summary                 *string         `json:"summary"`
	Recommendations         []string        `json:"recommendations"`
	CreatedAt               time.Time       `json:"created_at"`
}

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS scans (
	id                        TEXT PRIMARY KEY,
	url                       TEXT NOT NULL,
	host                      TEXT NOT NULL,
	overall_score             INTEGER NOT NULL,
	performance_score         INTEGER NOT NULL,
	seo_score                 INTEGER NOT NULL,
	accessibility_issue_count INTEGER NOT NULL,
	security_checks_passed    INTEGER NOT NULL,
	security_checks_total     INTEGER NOT NULL,
	technologies              TEXT NOT NULL,
	exposed_endpoints         TEXT NOT NULL,
	results_json              TEXT NOT NULL,
	top_issues                TEXT NOT NULL,
	summary                   TEXT,
	recommendations           TEXT NOT NULL,
	created_at                INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_host ON scans(host, created_at);
CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);
`

// Store wraps the sqlite database holding scan rows.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open creates or opens the database at cfg.Path and applies the schema.
func Open(cfg Config, logger logging.Logger) (*Store, error) {
	if logger == nil {
		return nil, errors.New("store: nil logger")
	}
	if cfg.Path == "" {
		return nil, errors.New("store: empty database path")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "store"})
	componentLogger.Info("scan store opened", logging.Field{Key: "path", Value: cfg.Path})

	return &Store{db: db, logger: componentLogger}, nil
}

// Save persists the report of one finished scan and returns the stored
// record. A report without a scan id gets a fresh uuid.
func (s *Store) Save(ctx context.Context, host string, report *scan.Report) (*Record, error) {
	if report == nil {
		return nil, errors.New("store: nil report")
	}

	id := report.ScanID
	if id == "" {
		id = uuid.New().String()
	}

	flat := report.Flatten()

	rec := &Record{
		ID:                      id,
		URL:                     report.URL,
		Host:                    host,
		OverallScore:            report.OverallScore,
		PerformanceScore:        flat.PerformanceScore,
		SEOScore:                flat.SEOScore,
		AccessibilityIssueCount: flat.AccessibilityIssueCount,
		SecurityChecksPassed:    flat.SecurityChecksPassed,
		SecurityChecksTotal:     flat.SecurityChecksTotal,
		Technologies:            flat.Technologies,
		ExposedEndpoints:        flat.ExposedEndpoints,
		Results:                 report.Results,
		TopIssues:               report.TopIssues,
		Recommendations:         []string{},
		CreatedAt:               time.Now().UTC(),
	}
	if report.Summary != nil {
		rec.Summary = report.Summary.Text
		if report.Summary.Recommendations != nil {
			rec.Recommendations = report.Summary.Recommendations
		}
	}

	resultsJSON, err := json.Marshal(rec.Results)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	topIssuesJSON, err := json.Marshal(rec.TopIssues)
	if err != nil {
		return nil, fmt.Errorf("marshal top issues: %w", err)
	}
	technologiesJSON, err := json.Marshal(rec.Technologies)
	if err != nil {
		return nil, fmt.Errorf("marshal technologies: %w", err)
	}
	endpointsJSON, err := json.Marshal(rec.ExposedEndpoints)
	if err != nil {
		return nil, fmt.Errorf("marshal endpoints: %w", err)
	}
	recommendationsJSON, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("marshal recommendations: %w", err)
	}

	var summary sql.NullString
	if rec.Summary != nil {
		summary = sql.NullString{String: *rec.Summary, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scans
		  (id, url, host, overall_score, performance_score, seo_score,
		   accessibility_issue_count, security_checks_passed, security_checks_total,
		   technologies, exposed_endpoints, results_json, top_issues,
		   summary, recommendations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.URL, rec.Host, rec.OverallScore, rec.PerformanceScore, rec.SEOScore,
		rec.AccessibilityIssueCount, rec.SecurityChecksPassed, rec.SecurityChecksTotal,
		string(technologiesJSON), string(endpointsJSON), string(resultsJSON), string(topIssuesJSON),
		summary, string(recommendationsJSON), rec.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}

	s.logger.Debug("scan saved",
		logging.Field{Key: "scan_id", Value: rec.ID},
		logging.Field{Key: "url", Value: rec.URL},
		logging.Field{Key: "overall_score", Value: rec.OverallScore})

	return rec, nil
}

// Get returns the scan with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, host, overall_score, performance_score, seo_score,
		       accessibility_issue_count, security_checks_passed, security_checks_total,
		       technologies, exposed_endpoints, results_json, top_issues,
		       summary, recommendations, created_at
		FROM scans WHERE id = ?
	`, id)

	rec, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Recent returns up to limit scans, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, host, overall_score, performance_score, seo_score,
		       accessibility_issue_count, security_checks_passed, security_checks_total,
		       technologies, exposed_endpoints, results_json, top_issues,
		       summary, recommendations, created_at
		FROM scans ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent scans: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*Record, error) {
	var (
		rec                 Record
		technologiesJSON    string
		endpointsJSON       string
		resultsJSON         string
		topIssuesJSON       string
		summary             sql.NullString
		recommendationsJSON string
		createdAt           int64
	)

	if err := row.Scan(&rec.ID, &rec.URL, &rec.Host, &rec.OverallScore,
		&rec.PerformanceScore, &rec.SEOScore, &rec.AccessibilityIssueCount,
		&rec.SecurityChecksPassed, &rec.SecurityChecksTotal,
		&technologiesJSON, &endpointsJSON, &resultsJSON, &topIssuesJSON,
		&summary, &recommendationsJSON, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(technologiesJSON), &rec.Technologies); err != nil {
		return nil, fmt.Errorf("unmarshal technologies: %w", err)
	}
	if err := json.Unmarshal([]byte(endpointsJSON), &rec.ExposedEndpoints); err != nil {
		return nil, fmt.Errorf("unmarshal endpoints: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &rec.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	if err := json.Unmarshal([]byte(topIssuesJSON), &rec.TopIssues); err != nil {
		return nil, fmt.Errorf("unmarshal top issues: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendationsJSON), &rec.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	if summary.Valid {
		rec.Summary = &summary.String
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &rec, nil
}
