package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"community-toolshare/config"
)

func TestNewWritesToLogFile(t *testing.T) {
	for _, mode := range []string{config.ModeDev, config.ModeRelease} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.Default()
			cfg.Mode = mode
			cfg.LogFile = filepath.Join(t.TempDir(), "logs", "sistema.log")

			logger, err := New(cfg)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			logger.Info("tool created")
			_ = logger.Sync()

			raw, err := os.ReadFile(cfg.LogFile)
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			if !strings.Contains(string(raw), "tool created") {
				t.Fatalf("log entry missing: %s", raw)
			}
		})
	}
}

func TestNewRespectsLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	cfg.LogFile = filepath.Join(t.TempDir(), "x.log")
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()
	raw, _ := os.ReadFile(cfg.LogFile)
	if strings.Contains(string(raw), "hidden") || !strings.Contains(string(raw), "shown") {
		t.Fatalf("level filter not applied: %s", raw)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
