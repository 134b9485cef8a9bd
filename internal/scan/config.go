package scan

import "time"

// Config carries the pipeline timeouts. Weights and checklist constants are
// fixed (see scanner.go); only the deadlines are tunable.
type Config struct {
	// ContentTimeout bounds each content analyzer's fetch.
	ContentTimeout time.Duration

	// BasicPerfTimeout bounds the timed fetch of the basic performance scan.
	BasicPerfTimeout time.Duration
}

// DefaultConfig returns the production deadlines.
func DefaultConfig() Config {
	return Config{
		ContentTimeout:   10 * time.Second,
		BasicPerfTimeout: 15 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ContentTimeout <= 0 {
		c.ContentTimeout = def.ContentTimeout
	}
	if c.BasicPerfTimeout <= 0 {
		c.BasicPerfTimeout = def.BasicPerfTimeout
	}
}
