package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Integration tests that exercise the full LoadFrom pipeline:
// defaults < YAML < environment variables.

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets port=9090, env overrides to 7070. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
stream:
  replay_limit: 40
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PARTYLEDGER_PORT", "7070")
	t.Setenv("PARTYLEDGER_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
	if cfg.Stream.ReplayLimit != 40 {
		t.Errorf("YAML should override defaults: got replay limit %d, want 40", cfg.Stream.ReplayLimit)
	}
	if cfg.Stream.HeartbeatInterval != 30*time.Second {
		t.Errorf("defaults should survive: got heartbeat %v", cfg.Stream.HeartbeatInterval)
	}
}

func TestLoadFrom_InvalidAfterOverlay(t *testing.T) {
	t.Setenv("PARTYLEDGER_REPLAY_LIMIT", "0")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected validation error for replay_limit=0")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PARTYLEDGER_TEST_DOTENV=from-file\nPARTYLEDGER_TEST_PRESET=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PARTYLEDGER_TEST_PRESET", "from-process")
	t.Cleanup(func() { _ = os.Unsetenv("PARTYLEDGER_TEST_DOTENV") })

	if err := loadDotEnv(envPath); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv("PARTYLEDGER_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected dotenv value, got %q", got)
	}
	if got := os.Getenv("PARTYLEDGER_TEST_PRESET"); got != "from-process" {
		t.Errorf("process env must win over .env, got %q", got)
	}
}

func TestLoadDotEnvMissing(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should not error, got %v", err)
	}
}
