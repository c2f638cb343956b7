package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rendis/cog-hubspot/internal/crm"
)

const envPrefix = "COG_HUBSPOT_"

// Config holds all cog server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	Transport  string `json:"transport"`
	ListenAddr string `json:"listen_addr"`
	BaseURL    string `json:"base_url"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`

	APIBaseURL   string `json:"api_base_url"`
	APIKey       string `json:"api_key"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	RedirectURI  string `json:"redirect_uri"`

	RefreshSchedule string `json:"refresh_schedule"`
	PruneSchedule   string `json:"prune_schedule"`
	RunRetention    string `json:"run_retention"`
}

func defaultConfig() Config {
	return Config{
		Transport:       "stdio",
		ListenAddr:      ":4200",
		DBPath:          filepath.Join(cogDir(), "runs.db"),
		LogLevel:        "info",
		APIBaseURL:      crm.DefaultBaseURL,
		RefreshSchedule: "*/30 * * * *",
		PruneSchedule:   "@daily",
		RunRetention:    "720h",
	}
}

func cogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cog-hubspot"
	}
	return filepath.Join(home, ".cog-hubspot")
}

func settingsPath() string {
	return filepath.Join(cogDir(), "settings.json")
}

func loadConfig() Config {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

func loadConfigFrom(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	for key, dst := range map[string]*string{
		"TRANSPORT":        &cfg.Transport,
		"LISTEN_ADDR":      &cfg.ListenAddr,
		"BASE_URL":         &cfg.BaseURL,
		"DB_PATH":          &cfg.DBPath,
		"LOG_LEVEL":        &cfg.LogLevel,
		"API_BASE_URL":     &cfg.APIBaseURL,
		"API_KEY":          &cfg.APIKey,
		"CLIENT_ID":        &cfg.ClientID,
		"CLIENT_SECRET":    &cfg.ClientSecret,
		"REFRESH_TOKEN":    &cfg.RefreshToken,
		"REDIRECT_URI":     &cfg.RedirectURI,
		"REFRESH_SCHEDULE": &cfg.RefreshSchedule,
		"PRUNE_SCHEDULE":   &cfg.PruneSchedule,
		"RUN_RETENTION":    &cfg.RunRetention,
	} {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	// Derive base_url from listen_addr if empty.
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	return cfg
}

func (c Config) validate() error {
	switch c.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("transport must be stdio or sse, got %q", c.Transport)
	}
	if _, err := c.retention(); err != nil {
		return err
	}
	return nil
}

// retention is how long runs are kept. Zero disables pruning.
func (c Config) retention() (time.Duration, error) {
	if c.RunRetention == "" || c.RunRetention == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RunRetention)
	if err != nil {
		return 0, fmt.Errorf("run_retention: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("run_retention must not be negative")
	}
	return d, nil
}

func (c Config) auth() crm.Auth {
	return crm.Auth{
		APIKey:       c.APIKey,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RefreshToken: c.RefreshToken,
		RedirectURI:  c.RedirectURI,
	}
}

// hasCredentials reports whether any credential is configured.
func (c Config) hasCredentials() bool {
	a := c.auth()
	return a.APIKey != "" || a.ClientID != "" || a.ClientSecret != "" || a.RefreshToken != ""
}
