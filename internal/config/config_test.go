package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so no stray chatgate.yaml is picked up.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 47800 {
		t.Errorf("expected default port 47800, got %d", cfg.Port)
	}
	if cfg.RateLimit.MaxRequests != 5 || cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("window not derived: %v", cfg.RateLimit.Window)
	}
	if cfg.Debug {
		t.Error("debug must default to off")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatgate.yaml")
	content := []byte(`
port: 9090
adminSecret: file-secret
rateLimit:
  maxRequests: 10
  windowSeconds: 30
providers:
  gemini:
    apiKey: file-gemini-key
  groq:
    apiKey: ignored
    disabled: true
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.AdminSecret != "file-secret" {
		t.Errorf("expected file-secret, got %q", cfg.AdminSecret)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("expected 30s window, got %v", cfg.RateLimit.Window)
	}
	if got := cfg.ProviderKey("gemini"); got != "file-gemini-key" {
		t.Errorf("expected gemini key, got %q", got)
	}
	if got := cfg.ProviderKey("groq"); got != "" {
		t.Errorf("disabled provider must return no key, got %q", got)
	}
	if got := cfg.ProviderKey("qwen"); got != "" {
		t.Errorf("unconfigured provider must return no key, got %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_SECRET", "env-secret")
	t.Setenv("EDGE_CONFIG", "https://edge-config.vercel.com/ecfg_env?token=x")
	t.Setenv("GEMINI_API_KEY", "env-gemini")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AdminSecret != "env-secret" {
		t.Errorf("expected env-secret, got %q", cfg.AdminSecret)
	}
	if cfg.Store.Connection != "https://edge-config.vercel.com/ecfg_env?token=x" {
		t.Errorf("store connection not bound: %q", cfg.Store.Connection)
	}
	if got := cfg.ProviderKey("gemini"); got != "env-gemini" {
		t.Errorf("expected env-gemini, got %q", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("an explicitly named missing file must fail")
	}
}
