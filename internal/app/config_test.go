package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sitegauge/sitegauge/internal/app"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := app.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerAddr != ":8080" {
		t.Errorf("server addr = %q, want :8080", cfg.ServerAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.ScanCfg.ContentTimeout != 10*time.Second {
		t.Errorf("content timeout = %v, want 10s", cfg.ScanCfg.ContentTimeout)
	}
	if cfg.ScanCfg.BasicPerfTimeout != 15*time.Second {
		t.Errorf("basic perf timeout = %v, want 15s", cfg.ScanCfg.BasicPerfTimeout)
	}
	if cfg.JobRetention != time.Hour {
		t.Errorf("job retention = %v, want 1h", cfg.JobRetention)
	}
	if cfg.RateLimitCfg.Window != time.Hour || cfg.RateLimitCfg.Ceiling != 5 {
		t.Errorf("rate limit = %v/%d, want 1h/5", cfg.RateLimitCfg.Window, cfg.RateLimitCfg.Ceiling)
	}
	if cfg.PageSpeedCfg.APIKey != "" || cfg.SummarizeCfg.APIKey != "" {
		t.Error("API keys must default to empty")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SITEGAUGE_SERVER_ADDR", ":9999")
	t.Setenv("SITEGAUGE_PAGESPEED_API_KEY", "ps-key")
	t.Setenv("SITEGAUGE_RATELIMIT_CEILING", "2")

	cfg, err := app.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerAddr != ":9999" {
		t.Errorf("server addr = %q, want :9999", cfg.ServerAddr)
	}
	if cfg.PageSpeedCfg.APIKey != "ps-key" {
		t.Errorf("pagespeed key = %q, want ps-key", cfg.PageSpeedCfg.APIKey)
	}
	if cfg.RateLimitCfg.Ceiling != 2 {
		t.Errorf("ceiling = %d, want 2", cfg.RateLimitCfg.Ceiling)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  addr: \":7070\"\nscan:\n  content_timeout: 3s\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := app.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerAddr != ":7070" {
		t.Errorf("server addr = %q, want :7070", cfg.ServerAddr)
	}
	if cfg.ScanCfg.ContentTimeout != 3*time.Second {
		t.Errorf("content timeout = %v, want 3s", cfg.ScanCfg.ContentTimeout)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	if _, err := app.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
