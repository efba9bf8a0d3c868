package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration
type Config struct {
	// UI Preferences
	UI UIConfig `json:"ui"`

	// Feed behavior
	Feed FeedConfig `json:"feed"`

	// Content provider settings
	Provider ProviderConfig `json:"provider"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	Theme    string `json:"theme"`
	Density  string `json:"density"`  // "expanded" or "condensed"
	Autoplay bool   `json:"autoplay"` // resume paused in-view media
	Stream   bool   `json:"stream"`   // live-stream new posts into the view
}

// FeedConfig holds feed refresh behavior
type FeedConfig struct {
	StreamIntervalSeconds int `json:"stream_interval_seconds"` // poll cadence for new posts
	ScanIntervalMs        int `json:"scan_interval_ms"`        // viewport monitor cadence
}

// ProviderConfig holds upstream API settings
type ProviderConfig struct {
	BaseURL           string  `json:"base_url"`
	UserAgent         string  `json:"user_agent"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			Theme:    "dark",
			Density:  "expanded",
			Autoplay: true,
			Stream:   false,
		},
		Feed: FeedConfig{
			StreamIntervalSeconds: 30,
			ScanIntervalMs:        250,
		},
		Provider: ProviderConfig{
			BaseURL:           "https://www.reddit.com",
			UserAgent:         "reacddit/0.1 (terminal client)",
			TimeoutSeconds:    30,
			RequestsPerSecond: 1,
		},
	}
}

// Condensed reports whether the condensed display mode is active.
func (c *Config) Condensed() bool {
	return c.UI.Density == "condensed"
}

// Autoplay reports whether in-view media should be kept playing.
func (c *Config) Autoplay() bool {
	return c.UI.Autoplay
}

// Stream reports whether the live-stream preference is enabled.
func (c *Config) Stream() bool {
	return c.UI.Stream
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".reacddit", "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}
	cfg.fillDefaults()

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// fillDefaults patches zero values left by older config files.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.UI.Density == "" {
		c.UI.Density = def.UI.Density
	}
	if c.Feed.StreamIntervalSeconds <= 0 {
		c.Feed.StreamIntervalSeconds = def.Feed.StreamIntervalSeconds
	}
	if c.Feed.ScanIntervalMs <= 0 {
		c.Feed.ScanIntervalMs = def.Feed.ScanIntervalMs
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = def.Provider.BaseURL
	}
	if c.Provider.UserAgent == "" {
		c.Provider.UserAgent = def.Provider.UserAgent
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = def.Provider.TimeoutSeconds
	}
	if c.Provider.RequestsPerSecond <= 0 {
		c.Provider.RequestsPerSecond = def.Provider.RequestsPerSecond
	}
}
