package cliconfig

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bft-labs/streamworker/pkg/log"
)

// DefaultBackendURL is the default backend endpoint.
const DefaultBackendURL = "http://localhost:8080"

// Persistence kinds.
const (
	PersistenceMemory   = "memory"
	PersistenceFile     = "file"
	PersistenceBadger   = "badger"
	PersistenceSQLite   = "sqlite"
	PersistencePostgres = "postgres"
)

// Config holds CLI configuration for streamworker.
type Config struct {
	BackendURL  string        `validate:"required,url"`
	AuthToken   string        `validate:"-"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	RetryMax    int           `validate:"gte=0"`

	RateLimit float64 `validate:"gte=0"`
	RateBurst int     `validate:"gte=0"`

	BufferSize         int `validate:"gt=0"`
	MaxConcurrentUnits int `validate:"gte=0"`
	UnitRetryAttempts  int `validate:"gte=0"`

	Persistence     string `validate:"oneof=memory file badger sqlite postgres"`
	PersistencePath string `validate:"required_unless=Persistence memory"`
	Compensate      bool

	MetricsAddr string `validate:"omitempty,hostname_port"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFormat   string `validate:"oneof=console json"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BackendURL:         DefaultBackendURL,
		HTTPTimeout:        30 * time.Second,
		RetryMax:           3,
		RateBurst:          1,
		BufferSize:         100,
		MaxConcurrentUnits: 4,
		UnitRetryAttempts:  3,
		Persistence:        PersistenceMemory,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors and normalizes values.
func (c *Config) Validate() error {
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	c.Persistence = strings.ToLower(c.Persistence)
	c.LogLevel = strings.ToLower(c.LogLevel)

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Redacted returns a copy safe for logging.
func (c Config) Redacted() Config {
	if c.AuthToken != "" {
		c.AuthToken = "*****"
	}
	if c.Persistence == PersistencePostgres && c.PersistencePath != "" {
		c.PersistencePath = "*****"
	}
	return c
}

// NewLogger builds the process logger from the log settings.
func (c Config) NewLogger(w io.Writer) log.Logger {
	return log.NewZerologAdapter(w, c.LogLevel, c.LogFormat == "console")
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
