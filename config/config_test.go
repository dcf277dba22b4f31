package config

import (
	"os"
	"testing"
)

func TestDefaultServerConfig_MatchesSpecDefaults(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.TickHz != DefaultTickHz {
		t.Errorf("TickHz = %d, want %d", cfg.TickHz, DefaultTickHz)
	}
	if cfg.ScoreLimit != DefaultScoreLimit {
		t.Errorf("ScoreLimit = %d, want %d", cfg.ScoreLimit, DefaultScoreLimit)
	}
	if !cfg.EnableCORS {
		t.Errorf("expected EnableCORS to default to true")
	}
}

func TestServerConfig_DeltaSecondsMatchesTickHz(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.TickHz = 240

	got := cfg.DeltaSeconds()
	want := 1.0 / 240.0
	if got != want {
		t.Errorf("DeltaSeconds() = %v, want %v", got, want)
	}
}

func TestServerConfig_TickIntervalMatchesTickHz(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.TickHz = 100

	if got := cfg.TickInterval(); got.Milliseconds() != 10 {
		t.Errorf("TickInterval() = %v, want 10ms", got)
	}
}

func TestLoadFromEnv_OverridesPresentVars(t *testing.T) {
	os.Setenv("HS_PORT", "9999")
	os.Setenv("HS_TICK_HZ", "120")
	os.Setenv("HS_ENABLE_CORS", "false")
	defer os.Unsetenv("HS_PORT")
	defer os.Unsetenv("HS_TICK_HZ")
	defer os.Unsetenv("HS_ENABLE_CORS")

	cfg := LoadFromEnv(DefaultServerConfig())

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.TickHz != 120 {
		t.Errorf("TickHz = %d, want 120", cfg.TickHz)
	}
	if cfg.EnableCORS {
		t.Errorf("expected EnableCORS to be disabled by HS_ENABLE_CORS=false")
	}
}

func TestLoadFromEnv_IgnoresMalformedNumericVars(t *testing.T) {
	os.Setenv("HS_TICK_HZ", "not-a-number")
	defer os.Unsetenv("HS_TICK_HZ")

	cfg := LoadFromEnv(DefaultServerConfig())
	if cfg.TickHz != DefaultTickHz {
		t.Errorf("expected a malformed HS_TICK_HZ to leave the default untouched, got %d", cfg.TickHz)
	}
}

func TestLoadFromEnv_LeavesDefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("HS_HOST")
	os.Unsetenv("HS_REDIS_URL")

	cfg := LoadFromEnv(DefaultServerConfig())
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}
