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
				"CACHENANNY_MANIFEST_URL":           "https://env.example.com/m",
				"CACHENANNY_LOADER_PATH":            "/env.html",
				"CACHENANNY_CHECK_INTERVAL":         "10m",
				"CACHENANNY_OFFLINE_CHECK_INTERVAL": "500",
				"CACHENANNY_HTTP_TIMEOUT":           "5s",
				"CACHENANNY_PROBE_INTERVAL":         "20s",
				"CACHENANNY_CACHE_DIR":              "/env/cache",
				"CACHENANNY_STATE_DIR":              "/env/state",
				"CACHENANNY_METRICS_ADDR":           "127.0.0.1:9000",
				"CACHENANNY_LOG_LEVEL":              "warn",
				"CACHENANNY_WATCH":                  "1",
			},
			changed: map[string]bool{},
			expected: Config{
				ManifestURL:          "https://env.example.com/m",
				LoaderPath:           "/env.html",
				CheckInterval:        10 * time.Minute,
				OfflineCheckInterval: 500 * time.Millisecond,
				HTTPTimeout:          5 * time.Second,
				ProbeInterval:        20 * time.Second,
				CacheDir:             "/env/cache",
				StateDir:             "/env/state",
				MetricsAddr:          "127.0.0.1:9000",
				LogLevel:             "warn",
				Watch:                true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"CACHENANNY_MANIFEST_URL":   "https://env.example.com/m",
				"CACHENANNY_CHECK_INTERVAL": "1m",
			},
			changed: map[string]bool{"manifest-url": true, "check-interval": true},
			initial: Config{
				ManifestURL:   "https://flag.example.com/m",
				CheckInterval: time.Second,
			},
			expected: Config{
				ManifestURL:   "https://flag.example.com/m",
				CheckInterval: time.Second,
			},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"CACHENANNY_CHECK_INTERVAL": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "handles bool 'false' as false",
			envVars: map[string]string{
				"CACHENANNY_WATCH": "false",
			},
			changed:  map[string]bool{},
			initial:  Config{Watch: true},
			expected: Config{Watch: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
