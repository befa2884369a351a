package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "STREAMWORKER_"

// ApplyEnvConfig applies configuration from environment variables (STREAMWORKER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("backend-url", env("BACKEND_URL"), &cfg.BackendURL)
	s.setString("auth-token", env("AUTH_TOKEN"), &cfg.AuthToken)
	s.setString("persistence", env("PERSISTENCE"), &cfg.Persistence)
	s.setString("persistence-path", env("PERSISTENCE_PATH"), &cfg.PersistencePath)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setFloatFromString("rate-limit", env("RATE_LIMIT"), &cfg.RateLimit); err != nil {
		return err
	}

	for _, v := range []struct {
		flag, name string
		dst        *int
	}{
		{"retry-max", "RETRY_MAX", &cfg.RetryMax},
		{"rate-burst", "RATE_BURST", &cfg.RateBurst},
		{"buffer-size", "BUFFER_SIZE", &cfg.BufferSize},
		{"max-concurrent-units", "MAX_CONCURRENT_UNITS", &cfg.MaxConcurrentUnits},
		{"unit-retries", "UNIT_RETRY_ATTEMPTS", &cfg.UnitRetryAttempts},
	} {
		if err := s.setIntFromString(v.flag, env(v.name), v.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("compensate", env("COMPENSATE"), &cfg.Compensate)

	return nil
}
