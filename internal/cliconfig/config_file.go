package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	BackendURL         string  `toml:"backend_url"`
	AuthToken          string  `toml:"auth_token"`
	HTTPTimeout        string  `toml:"http_timeout"`
	RetryMax           int     `toml:"retry_max"`
	RateLimit          float64 `toml:"rate_limit"`
	RateBurst          int     `toml:"rate_burst"`
	BufferSize         int     `toml:"buffer_size"`
	MaxConcurrentUnits int     `toml:"max_concurrent_units"`
	UnitRetryAttempts  int     `toml:"unit_retry_attempts"`
	Persistence        string  `toml:"persistence"`
	PersistencePath    string  `toml:"persistence_path"`
	Compensate         *bool   `toml:"compensate"`
	MetricsAddr        string  `toml:"metrics_addr"`
	LogLevel           string  `toml:"log_level"`
	LogFormat          string  `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.streamworker/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".streamworker", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("backend-url", fc.BackendURL, &cfg.BackendURL)
	s.setString("auth-token", fc.AuthToken, &cfg.AuthToken)
	s.setString("persistence", fc.Persistence, &cfg.Persistence)
	s.setString("persistence-path", fc.PersistencePath, &cfg.PersistencePath)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setFloat("rate-limit", fc.RateLimit, &cfg.RateLimit)

	s.setInt("retry-max", fc.RetryMax, &cfg.RetryMax)
	s.setInt("rate-burst", fc.RateBurst, &cfg.RateBurst)
	s.setInt("buffer-size", fc.BufferSize, &cfg.BufferSize)
	s.setInt("max-concurrent-units", fc.MaxConcurrentUnits, &cfg.MaxConcurrentUnits)
	s.setInt("unit-retries", fc.UnitRetryAttempts, &cfg.UnitRetryAttempts)

	s.setBool("compensate", fc.Compensate, &cfg.Compensate)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
