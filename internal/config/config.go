// Package config loads the anitrakt global configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the user-level configuration loaded from
// $XDG_CONFIG_HOME/anitrakt/config.yml (or /etc/anitrakt/config.yml).
type Config struct {
	Trakt TraktConfig `yaml:"trakt"`
	API   APIConfig   `yaml:"api"`
	Paths PathsConfig `yaml:"paths"`
}

// TraktConfig holds the Trakt application credentials. Environment variables
// TRAKT_CLIENT_ID / TRAKT_CLIENT_SECRET override values from the file.
type TraktConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// APIConfig holds transport tuning. The rate ceilings default to what the
// Trakt API documents: 1 mutating call/s, ~3 read calls/s.
type APIConfig struct {
	Timeout       int     `yaml:"timeout"`         // seconds
	PostRateLimit float64 `yaml:"post_rate_limit"` // mutating requests per second
	GetRateLimit  float64 `yaml:"get_rate_limit"`  // read requests per second
	MaxRetries    int     `yaml:"max_retries"`
}

// PathsConfig holds overrides for on-disk state locations.
type PathsConfig struct {
	CacheDir string `yaml:"cache_dir"` // mapping cache, defaults to ~/.cache/anitrakt
	TokenDir string `yaml:"token_dir"` // trakt token, defaults to config dir
}

// Default returns the hardcoded default configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			Timeout:       30,
			PostRateLimit: 1,
			GetRateLimit:  3,
			MaxRetries:    3,
		},
	}
}

// Load loads the configuration from the specified path or standard locations.
// A missing file is not an error: defaults are returned.
func Load(customPath string) (*Config, error) {
	cfg := Default()

	path := customPath
	if path == "" {
		path = findConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config at %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config at %s: %w", path, err)
		}
	}

	// Environment overrides for credentials
	if v := os.Getenv("TRAKT_CLIENT_ID"); v != "" {
		cfg.Trakt.ClientID = v
	}
	if v := os.Getenv("TRAKT_CLIENT_SECRET"); v != "" {
		cfg.Trakt.ClientSecret = v
	}

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 30
	}
	if cfg.API.PostRateLimit <= 0 {
		cfg.API.PostRateLimit = 1
	}
	if cfg.API.GetRateLimit <= 0 {
		cfg.API.GetRateLimit = 3
	}
	if cfg.API.MaxRetries <= 0 {
		cfg.API.MaxRetries = 3
	}

	return &cfg, nil
}

// CacheDir returns the directory for the mapping cache, creating it if needed.
func (c *Config) CacheDir() (string, error) {
	dir := c.Paths.CacheDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".cache", "anitrakt")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return dir, nil
}

// TokenDir returns the directory for the Trakt token file, creating it if
// needed.
func (c *Config) TokenDir() (string, error) {
	dir := c.Paths.TokenDir
	if dir == "" {
		dir = configHome()
		if dir == "" {
			return "", fmt.Errorf("failed to locate a config directory")
		}
		dir = filepath.Join(dir, "anitrakt")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create token directory %s: %w", dir, err)
	}
	return dir, nil
}

// findConfig searches for the config file in standard locations.
func findConfig() string {
	if dir := configHome(); dir != "" {
		path := filepath.Join(dir, "anitrakt", "config.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	etcPath := "/etc/anitrakt/config.yml"
	if _, err := os.Stat(etcPath); err == nil {
		return etcPath
	}

	return ""
}

func configHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config")
}
