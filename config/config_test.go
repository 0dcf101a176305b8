package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg != Default() {
		t.Fatalf("want defaults, got %+v", *cfg)
	}
}

func TestLoadYAMLThenEnvOverride(t *testing.T) {
	path := writeYAML(t, "mode: release\nbackend: sqlite\nsqlite_path: /tmp/x.db\ndefault_loan_days: 14\n")
	t.Setenv("TOOLSHARE_LOW_STOCK_THRESHOLD", "5")
	t.Setenv("TOOLSHARE_DEFAULT_LOAN_DAYS", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeRelease || cfg.Backend != BackendSQLite || cfg.SQLitePath != "/tmp/x.db" {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.DefaultLoanDays != 10 || cfg.LowStockThreshold != 5 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	// untouched keys keep defaults
	if cfg.LogLevel != "info" {
		t.Fatalf("want default log level, got %q", cfg.LogLevel)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeYAML(t, "mode: [dev\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadRejectsBadEnvInt(t *testing.T) {
	t.Setenv("TOOLSHARE_DEFAULT_LOAN_DAYS", "seven")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "TOOLSHARE_DEFAULT_LOAN_DAYS") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"defaults ok", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.Mode = "prod" }, "mode"},
		{"bad backend", func(c *Config) { c.Backend = "csv" }, "backend"},
		{"json needs dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"sqlite needs path", func(c *Config) { c.Backend = BackendSQLite; c.SQLitePath = "" }, "sqlite_path"},
		{"zero loan days", func(c *Config) { c.DefaultLoanDays = 0 }, "default_loan_days"},
		{"negative threshold", func(c *Config) { c.LowStockThreshold = -1 }, "low_stock_threshold"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errSub == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errSub) {
				t.Fatalf("want error containing %q, got %v", tc.errSub, err)
			}
		})
	}
}
