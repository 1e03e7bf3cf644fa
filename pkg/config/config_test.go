package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
environment: test
platform:
  base_url: https://platform.example
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Trading.MinMovementBalance != 250 {
		t.Fatalf("min movement balance = %v, want 250", cfg.Trading.MinMovementBalance)
	}
	if cfg.Trading.CatalogTTL != 30*time.Second {
		t.Fatalf("catalog ttl = %v, want 30s", cfg.Trading.CatalogTTL)
	}
	if cfg.Trading.CountdownTick != time.Second {
		t.Fatalf("countdown tick = %v, want 1s", cfg.Trading.CountdownTick)
	}
	if cfg.Trading.Poll.Interval != 5*time.Second {
		t.Fatalf("poll interval = %v, want 5s", cfg.Trading.Poll.Interval)
	}
	if cfg.Trading.Poll.BackoffInterval != 15*time.Second {
		t.Fatalf("poll backoff = %v, want 15s", cfg.Trading.Poll.BackoffInterval)
	}
	if cfg.Trading.Poll.MaxAttempts != 40 {
		t.Fatalf("poll max attempts = %v, want 40", cfg.Trading.Poll.MaxAttempts)
	}
	if cfg.Trading.Poll.Budget != 3*time.Minute {
		t.Fatalf("poll budget = %v, want 3m", cfg.Trading.Poll.Budget)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing environment", "platform:\n  base_url: https://x\n"},
		{"missing platform url", "environment: test\n"},
		{"backoff not above interval", minimalConfig + `
trading:
  poll:
    interval: 10s
    backoff_interval: 10s
`},
		{"kafka enabled without brokers", minimalConfig + `
kafka:
  enabled: true
`},
		{"clickhouse enabled without host", minimalConfig + `
clickhouse:
  enabled: true
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatalf("want validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PLATFORM_BASE_URL", "https://override.example")
	t.Setenv("PLATFORM_API_KEY", "k-123")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Platform.BaseURL != "https://override.example" {
		t.Fatalf("base url = %q", cfg.Platform.BaseURL)
	}
	if cfg.Platform.APIKey != "k-123" {
		t.Fatalf("api key = %q", cfg.Platform.APIKey)
	}
}
