package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sitegauge/sitegauge/internal/pagespeed"
	"github.com/sitegauge/sitegauge/internal/ratelimit"
	"github.com/sitegauge/sitegauge/internal/scan"
	"github.com/sitegauge/sitegauge/internal/summarize"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

// envKeyReplacer maps config keys like "pagespeed.api_key" to environment
// variables like SITEGAUGE_PAGESPEED_API_KEY.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config aggregates the per-package configuration. API keys live here and
// are passed into constructors at startup; no component reads the
// environment on its own.
type Config struct {
	// ServerAddr is the HTTP listen address.
	ServerAddr string

	// LogLevel is the zap level name.
	LogLevel string

	// StoragePath is the sqlite database file for scan records.
	StoragePath string

	// JobRetention is how long finished jobs stay queryable in memory.
	// Their records remain in the store afterwards.
	JobRetention time.Duration

	WebclientCfg webclient.Config
	ScanCfg      scan.Config
	PageSpeedCfg pagespeed.Config
	SummarizeCfg summarize.Config
	RateLimitCfg ratelimit.Config
}

// DefaultConfig returns a Config populated with production defaults. API
// keys are empty, which disables the external performance strategy and the
// summarization step.
func DefaultConfig() *Config {
	return &Config{
		ServerAddr:   ":8080",
		LogLevel:     "info",
		StoragePath:  "sitegauge.db",
		JobRetention: time.Hour,
		WebclientCfg: webclient.Config{},
		ScanCfg:      scan.DefaultConfig(),
		PageSpeedCfg: pagespeed.Config{},
		SummarizeCfg: summarize.Config{},
		RateLimitCfg: ratelimit.DefaultConfig(),
	}
}

// Load builds the Config from an optional YAML file plus SITEGAUGE_*
// environment variables. An empty configFile means env and defaults only.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.path", "sitegauge.db")
	v.SetDefault("jobs.retention", "1h")
	v.SetDefault("scan.content_timeout", "10s")
	v.SetDefault("scan.basic_perf_timeout", "15s")
	v.SetDefault("ratelimit.window", "1h")
	v.SetDefault("ratelimit.ceiling", 5)
	v.SetDefault("pagespeed.api_key", "")
	v.SetDefault("pagespeed.strategy", "mobile")
	v.SetDefault("summarize.api_key", "")
	v.SetDefault("summarize.model", "")
	v.SetDefault("webclient.user_agent", "")

	v.SetEnvPrefix("SITEGAUGE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := DefaultConfig()
	cfg.ServerAddr = v.GetString("server.addr")
	cfg.LogLevel = v.GetString("log.level")
	cfg.StoragePath = v.GetString("storage.path")
	cfg.JobRetention = durationOr(v, "jobs.retention", cfg.JobRetention)
	cfg.WebclientCfg.UserAgent = v.GetString("webclient.user_agent")
	cfg.ScanCfg.ContentTimeout = durationOr(v, "scan.content_timeout", cfg.ScanCfg.ContentTimeout)
	cfg.ScanCfg.BasicPerfTimeout = durationOr(v, "scan.basic_perf_timeout", cfg.ScanCfg.BasicPerfTimeout)
	cfg.PageSpeedCfg.APIKey = v.GetString("pagespeed.api_key")
	cfg.PageSpeedCfg.Strategy = v.GetString("pagespeed.strategy")
	cfg.SummarizeCfg.APIKey = v.GetString("summarize.api_key")
	cfg.SummarizeCfg.Model = v.GetString("summarize.model")
	cfg.RateLimitCfg.Window = durationOr(v, "ratelimit.window", cfg.RateLimitCfg.Window)
	cfg.RateLimitCfg.Ceiling = v.GetInt("ratelimit.ceiling")

	return cfg, nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}
