package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for explicit missing config path")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.Timeout != 30 {
		t.Errorf("Timeout = %d; want 30", cfg.API.Timeout)
	}
	if cfg.API.PostRateLimit != 1 {
		t.Errorf("PostRateLimit = %v; want 1", cfg.API.PostRateLimit)
	}
	if cfg.API.GetRateLimit != 3 {
		t.Errorf("GetRateLimit = %v; want 3", cfg.API.GetRateLimit)
	}
	if cfg.API.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d; want 3", cfg.API.MaxRetries)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
trakt:
  client_id: abc123
  client_secret: shh
api:
  timeout: 10
  max_retries: 5
paths:
  cache_dir: /tmp/anitrakt-test-cache
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Trakt.ClientID != "abc123" {
		t.Errorf("ClientID = %q; want %q", cfg.Trakt.ClientID, "abc123")
	}
	if cfg.API.Timeout != 10 {
		t.Errorf("Timeout = %d; want 10", cfg.API.Timeout)
	}
	if cfg.API.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d; want 5", cfg.API.MaxRetries)
	}
	if cfg.API.PostRateLimit != 1 {
		t.Errorf("PostRateLimit = %v; want default 1", cfg.API.PostRateLimit)
	}
	if cfg.Paths.CacheDir != "/tmp/anitrakt-test-cache" {
		t.Errorf("CacheDir = %q", cfg.Paths.CacheDir)
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "trakt:\n  client_id: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TRAKT_CLIENT_ID", "from-env")
	t.Setenv("TRAKT_CLIENT_SECRET", "secret-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Trakt.ClientID != "from-env" {
		t.Errorf("ClientID = %q; want env override", cfg.Trakt.ClientID)
	}
	if cfg.Trakt.ClientSecret != "secret-env" {
		t.Errorf("ClientSecret = %q; want env override", cfg.Trakt.ClientSecret)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("trakt: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCacheDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfg := Default()
	cfg.Paths.CacheDir = dir

	got, err := cfg.CacheDir()
	if err != nil {
		t.Fatalf("CacheDir failed: %v", err)
	}
	if got != dir {
		t.Errorf("CacheDir() = %q; want %q", got, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
}

func TestTokenDirMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	cfg := Default()
	cfg.Paths.TokenDir = dir

	got, err := cfg.TokenDir()
	if err != nil {
		t.Fatalf("TokenDir failed: %v", err)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("token dir mode = %o; want 0700", info.Mode().Perm())
	}
}
