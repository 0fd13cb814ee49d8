package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoadRequiresAccessToken(t *testing.T) {
	t.Setenv("ROLLBAR_ACCESS_TOKEN", "")

	_, err := Load("")
	if !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROLLBAR_ACCESS_TOKEN", "tok")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected production, got %s", cfg.Environment)
	}
	if cfg.CodeVersion != "" {
		t.Errorf("expected code version unset, got %q", cfg.CodeVersion)
	}
	if cfg.Platform != runtime.GOOS {
		t.Errorf("expected %s, got %s", runtime.GOOS, cfg.Platform)
	}
	if cfg.Blocking {
		t.Error("expected non-blocking by default")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Timeout)
	}
	if len(cfg.NotifyLevels) != 2 {
		t.Errorf("expected default notify levels, got %v", cfg.NotifyLevels)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollbar.yaml")
	content := []byte(`
access_token: from-file
environment: staging
code_version: "1.0.0"
blocking: true
timeout: 5s
logging:
  level: debug
  format: console
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROLLBAR_ACCESS_TOKEN", "")
	t.Setenv("ROLLBAR_ENVIRONMENT", "canary")
	t.Setenv("ROLLBAR_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessToken != "from-file" {
		t.Errorf("expected token from file, got %q", cfg.AccessToken)
	}
	if cfg.Environment != "canary" {
		t.Errorf("expected env override, got %s", cfg.Environment)
	}
	if cfg.CodeVersion != "1.0.0" || !cfg.Blocking || cfg.Timeout != 5*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	t.Setenv("ROLLBAR_ACCESS_TOKEN", "tok")
	t.Setenv("ROLLBAR_LOGGING_FORMAT", "xml")

	if _, err := Load(""); !errors.Is(err, ErrInvalidLogFormat) {
		t.Fatalf("expected ErrInvalidLogFormat, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ROLLBAR_ACCESS_TOKEN", "")
	if FromEnv().Enabled() {
		t.Error("expected reporting disabled without a token")
	}

	t.Setenv("ROLLBAR_ACCESS_TOKEN", "tok")
	t.Setenv("ROLLBAR_CODE_VERSION", "42")
	cfg := FromEnv()
	if !cfg.Enabled() || cfg.CodeVersion != "42" {
		t.Errorf("unexpected config %+v", cfg)
	}
}
