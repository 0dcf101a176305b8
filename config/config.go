// Package config loads runtime settings from .env, YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

const (
	ModeDev     = "dev"
	ModeRelease = "release"

	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	Mode              string `yaml:"mode"`
	Backend           string `yaml:"backend"`
	DataDir           string `yaml:"data_dir"`
	SQLitePath        string `yaml:"sqlite_path"`
	LogFile           string `yaml:"log_file"`
	LogLevel          string `yaml:"log_level"`
	DefaultLoanDays   int    `yaml:"default_loan_days"`
	LowStockThreshold int    `yaml:"low_stock_threshold"`
}

// Default keeps data under datos/ and the log under logs/.
func Default() Config {
	return Config{
		Mode:              ModeDev,
		Backend:           BackendJSON,
		DataDir:           "datos",
		SQLitePath:        "datos/toolshare.db",
		LogFile:           "logs/sistema.log",
		LogLevel:          "info",
		DefaultLoanDays:   7,
		LowStockThreshold: 3,
	}
}

// Load reads .env (if any), then the YAML file at path (if any), then
// TOOLSHARE_* environment overrides. Missing files are not errors.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(buf, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TOOLSHARE_MODE":        &c.Mode,
		"TOOLSHARE_BACKEND":     &c.Backend,
		"TOOLSHARE_DATA_DIR":    &c.DataDir,
		"TOOLSHARE_SQLITE_PATH": &c.SQLitePath,
		"TOOLSHARE_LOG_FILE":    &c.LogFile,
		"TOOLSHARE_LOG_LEVEL":   &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TOOLSHARE_DEFAULT_LOAN_DAYS":   &c.DefaultLoanDays,
		"TOOLSHARE_LOW_STOCK_THRESHOLD": &c.LowStockThreshold,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDev, ModeRelease, c.Mode)
	}
	switch c.Backend {
	case BackendJSON:
		if c.DataDir == "" {
			return errors.New("data_dir is required for the json backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendJSON, BackendSQLite, c.Backend)
	}
	if c.DefaultLoanDays < 1 {
		return fmt.Errorf("default_loan_days must be at least 1, got %d", c.DefaultLoanDays)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("low_stock_threshold cannot be negative, got %d", c.LowStockThreshold)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
