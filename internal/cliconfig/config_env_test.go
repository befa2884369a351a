package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"STREAMWORKER_BACKEND_URL":          "http://env:8080",
				"STREAMWORKER_AUTH_TOKEN":           "tok",
				"STREAMWORKER_HTTP_TIMEOUT":         "10s",
				"STREAMWORKER_RATE_LIMIT":           "2.5",
				"STREAMWORKER_BUFFER_SIZE":          "50",
				"STREAMWORKER_MAX_CONCURRENT_UNITS": "8",
				"STREAMWORKER_PERSISTENCE":          "badger",
				"STREAMWORKER_PERSISTENCE_PATH":     "/var/lib/sw",
				"STREAMWORKER_COMPENSATE":           "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				BackendURL:         "http://env:8080",
				AuthToken:          "tok",
				HTTPTimeout:        10 * time.Second,
				RateLimit:          2.5,
				BufferSize:         50,
				MaxConcurrentUnits: 8,
				Persistence:        "badger",
				PersistencePath:    "/var/lib/sw",
				Compensate:         true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"STREAMWORKER_BACKEND_URL": "http://env:8080",
				"STREAMWORKER_BUFFER_SIZE": "50",
			},
			changed: map[string]bool{"backend-url": true},
			initial: Config{BackendURL: "http://flag:8080"},
			expected: Config{
				BackendURL: "http://flag:8080",
				BufferSize: 50,
			},
		},
		{
			name: "compensate accepts 1",
			envVars: map[string]string{
				"STREAMWORKER_COMPENSATE": "1",
			},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{Compensate: true},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"STREAMWORKER_HTTP_TIMEOUT": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"STREAMWORKER_BUFFER_SIZE": "lots",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid float",
			envVars: map[string]string{
				"STREAMWORKER_RATE_LIMIT": "fast",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
