// Package ratelimit enforces the per-host scan ceiling. It is advisory
// bookkeeping checked once before a pipeline starts: it rejects outright,
// never queues or blocks.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitegauge/sitegauge/internal/logging"
)

type Config struct {
	// Window is the rolling period the ceiling applies to.
	Window time.Duration

	// Ceiling is the number of scans allowed per host per window.
	Ceiling int
}

// DefaultConfig is the fixed production setting: 5 scans per host per hour.
func DefaultConfig() Config {
	return Config{Window: time.Hour, Ceiling: 5}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.Ceiling <= 0 {
		c.Ceiling = def.Ceiling
	}
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// HostLimiter keeps one token bucket per target host: burst equal to the
// ceiling, refilling one token per window. Less than one token accrues
// inside any window, so a host that spent its burst stays rejected until the
// window has passed; rejection does not consume a token.
type HostLimiter struct {
	cfg    Config
	logger logging.Logger

	mu    sync.Mutex
	hosts map[string]*hostEntry
}

func New(cfg Config, logger logging.Logger) *HostLimiter {
	cfg.applyDefaults()
	return &HostLimiter{
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "ratelimit"}),
		hosts:  make(map[string]*hostEntry),
	}
}

// Allow reports whether another scan of host may start now.
func (l *HostLimiter) Allow(host string) bool {
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.hosts[host]
	if !ok {
		entry = &hostEntry{
			limiter: rate.NewLimiter(rate.Every(l.cfg.Window), l.cfg.Ceiling),
		}
		l.hosts[host] = entry
	}
	entry.lastSeen = now
	l.pruneLocked(now)
	l.mu.Unlock()

	allowed := entry.limiter.Allow()
	if !allowed {
		l.logger.Warn("scan rejected by host ceiling",
			logging.Field{Key: "host", Value: host},
			logging.Field{Key: "ceiling", Value: l.cfg.Ceiling})
	}
	return allowed
}

// pruneLocked drops hosts idle for at least two windows. Everything such a
// host did is outside the rolling window of any scan that follows, so handing
// it a fresh bucket cannot push it past the ceiling.
func (l *HostLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-2 * l.cfg.Window)
	for host, entry := range l.hosts {
		if entry.lastSeen.Before(cutoff) {
			delete(l.hosts, host)
		}
	}
}
