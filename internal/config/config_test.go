package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != filepath.Join(dir, "data") {
		t.Errorf("data dir = %q, want %q", cfg.DataDir, filepath.Join(dir, "data"))
	}
	if cfg.Sync.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", cfg.Sync.MaxRetries)
	}
	if cfg.StalenessWindow() != 168*time.Hour {
		t.Errorf("staleness window = %v, want 168h", cfg.StalenessWindow())
	}
	if cfg.ProbeInterval() != 30*time.Second {
		t.Errorf("probe interval = %v, want 30s", cfg.ProbeInterval())
	}
	if cfg.Provider.Name != "anthropic" {
		t.Errorf("provider = %q, want anthropic", cfg.Provider.Name)
	}
	if cfg.Dashboard.Port != 8090 {
		t.Errorf("dashboard port = %d, want 8090", cfg.Dashboard.Port)
	}
	if cfg.Remote.URL != "" {
		t.Errorf("remote url should default empty, got %q", cfg.Remote.URL)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `data_dir: /tmp/tutorkit-data
remote:
  url: libsql://example.turso.io
  user_id: user-42
sync:
  staleness_window_hours: 24
  max_retries: 5
provider:
  name: openai-compatible
  base_url: http://localhost:11434
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/tmp/tutorkit-data" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.Remote.URL != "libsql://example.turso.io" {
		t.Errorf("remote url = %q", cfg.Remote.URL)
	}
	if cfg.Remote.UserID != "user-42" {
		t.Errorf("user id = %q", cfg.Remote.UserID)
	}
	if cfg.StalenessWindow() != 24*time.Hour {
		t.Errorf("staleness window = %v, want 24h", cfg.StalenessWindow())
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.Sync.MaxRetries)
	}
	// Unset keys still fall back to defaults
	if cfg.Sync.ProbeIntervalSeconds != 30 {
		t.Errorf("probe interval seconds = %d, want default 30", cfg.Sync.ProbeIntervalSeconds)
	}
	if cfg.Provider.Name != "openai-compatible" {
		t.Errorf("provider = %q", cfg.Provider.Name)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()

	// Keys without compile-time defaults (the secrets) and one with.
	t.Setenv("TUT_REMOTE_URL", "libsql://env.turso.io")
	t.Setenv("TUT_REMOTE_AUTH_TOKEN", "tok-env")
	t.Setenv("TUT_REMOTE_USER_ID", "user-env")
	t.Setenv("TUT_PROVIDER_API_KEY", "sk-env")
	t.Setenv("TUT_PROVIDER_MODEL", "claude-sonnet-4-20250514")
	t.Setenv("TUT_SYNC_MAX_RETRIES", "7")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.URL != "libsql://env.turso.io" {
		t.Errorf("remote url = %q, want env value", cfg.Remote.URL)
	}
	if cfg.Remote.AuthToken != "tok-env" {
		t.Errorf("auth token = %q, want env value", cfg.Remote.AuthToken)
	}
	if cfg.Remote.UserID != "user-env" {
		t.Errorf("user id = %q, want env value", cfg.Remote.UserID)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("api key = %q, want env value", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q, want env value", cfg.Provider.Model)
	}
	if cfg.Sync.MaxRetries != 7 {
		t.Errorf("max retries = %d, want 7", cfg.Sync.MaxRetries)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `remote:
  url: libsql://file.turso.io
  user_id: user-file
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TUT_REMOTE_URL", "libsql://env.turso.io")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.URL != "libsql://env.turso.io" {
		t.Errorf("remote url = %q, want env to win over file", cfg.Remote.URL)
	}
	if cfg.Remote.UserID != "user-file" {
		t.Errorf("user id = %q, want file value to survive", cfg.Remote.UserID)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("data_dir: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Remote.URL = "libsql://example.turso.io"
	cfg.Remote.UserID = "user-42"
	cfg.Sync.StalenessWindowHours = 48

	if err := Write(dir, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after Write: %v", err)
	}
	if got.Remote.URL != cfg.Remote.URL {
		t.Errorf("remote url = %q, want %q", got.Remote.URL, cfg.Remote.URL)
	}
	if got.Remote.UserID != "user-42" {
		t.Errorf("user id = %q", got.Remote.UserID)
	}
	if got.Sync.StalenessWindowHours != 48 {
		t.Errorf("staleness window hours = %d, want 48", got.Sync.StalenessWindowHours)
	}
}

func TestWriteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Write(dir, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}
