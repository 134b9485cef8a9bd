package webclient

import "time"

const (
	// DefaultUserAgent identifies the auditor to target sites.
	DefaultUserAgent = "Mozilla/5.0 (compatible; SiteGaugeBot/1.0; +https://sitegauge.dev/bot)"

	defaultAccept  = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
	defaultTimeout = 10 * time.Second
)

type Config struct {
	// UserAgent is sent on every request. Fixed per deployment.
	UserAgent string

	// Accept hints the preferred content types to the origin.
	Accept string

	// DefaultTimeout applies when a caller passes a non-positive timeout.
	DefaultTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Accept == "" {
		c.Accept = defaultAccept
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
}
