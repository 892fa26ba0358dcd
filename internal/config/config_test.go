package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEnvSubstitution(t *testing.T) {
	t.Setenv("TERRARIUM_KEY", "secret-from-env")

	path := writeConfig(t, `{
		"server": {"port": 8080, "log_level": "${LOG_LEVEL:info}"},
		"providers": [{"id": "main", "type": "openai", "api_key": "${TERRARIUM_KEY}"}]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("log_level = %q, want default %q", cfg.Server.LogLevel, "info")
	}
	if got := cfg.Providers[0].APIKey; got != "secret-from-env" {
		t.Errorf("api_key = %q, want env value", got)
	}
}

func TestLoadTuningDefaults(t *testing.T) {
	path := writeConfig(t, `{"server": {"port": 9000}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tuning.MainTick != 2*time.Second {
		t.Errorf("main tick = %v, want 2s", cfg.Tuning.MainTick)
	}
	if cfg.Tuning.QualityThreshold != 6 {
		t.Errorf("quality threshold = %d, want 6", cfg.Tuning.QualityThreshold)
	}
	if cfg.Tuning.BaseDelay != 3*time.Second {
		t.Errorf("base delay = %v, want 3s", cfg.Tuning.BaseDelay)
	}
	if cfg.Tuning.JournalCap != 100 || cfg.Tuning.ReactiveJournalCap != 50 || cfg.Tuning.EventCap != 20 {
		t.Errorf("journal caps = %d/%d/%d, want 100/50/20",
			cfg.Tuning.JournalCap, cfg.Tuning.ReactiveJournalCap, cfg.Tuning.EventCap)
	}
	if cfg.World.MinParticipants != 5 || cfg.World.MaxParticipants != 20 {
		t.Errorf("population bounds = %d..%d, want 5..20", cfg.World.MinParticipants, cfg.World.MaxParticipants)
	}
}

func TestLoadTuningOverride(t *testing.T) {
	path := writeConfig(t, `{
		"tuning": {"main_tick": 500000000, "quality_threshold": 8}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tuning.MainTick != 500*time.Millisecond {
		t.Errorf("main tick = %v, want 500ms", cfg.Tuning.MainTick)
	}
	if cfg.Tuning.QualityThreshold != 8 {
		t.Errorf("quality threshold = %d, want 8", cfg.Tuning.QualityThreshold)
	}
	// Knobs not present in the file keep their stock values.
	if cfg.Tuning.FallbackChance != 0.15 {
		t.Errorf("fallback chance = %v, want 0.15", cfg.Tuning.FallbackChance)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
