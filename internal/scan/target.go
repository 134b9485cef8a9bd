package scan

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is the immutable input of one scan run.
type Target struct {
	// ScanID is an opaque identifier supplied by the caller/store.
	ScanID string

	// URL is the absolute target URL as given.
	URL string

	// Host is extracted from URL for rate limiting.
	Host string
}

// NewTarget validates rawURL and extracts the host. The URL must be absolute
// with an http or https scheme.
func NewTarget(scanID, rawURL string) (*Target, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse target url %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("target url %q is not absolute", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("target url %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("target url %q has no host", rawURL)
	}

	return &Target{
		ScanID: scanID,
		URL:    u.String(),
		Host:   u.Hostname(),
	}, nil
}

// HTTPS reports whether the target is served over TLS.
func (t *Target) HTTPS() bool {
	return strings.HasPrefix(strings.ToLower(t.URL), "https")
}
