package config

import (
	"encoding/json"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Condensed() {
		t.Error("default density should be expanded")
	}
	if !cfg.Autoplay() {
		t.Error("autoplay should default on")
	}
	if cfg.Stream() {
		t.Error("streaming should default off")
	}
	if cfg.Feed.StreamIntervalSeconds != 30 || cfg.Feed.ScanIntervalMs != 250 {
		t.Errorf("unexpected feed defaults: %+v", cfg.Feed)
	}
	if cfg.Provider.BaseURL == "" || cfg.Provider.UserAgent == "" {
		t.Errorf("provider defaults missing: %+v", cfg.Provider)
	}
}

func TestCondensed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UI.Density = "condensed"
	if !cfg.Condensed() {
		t.Error("expected condensed mode")
	}
}

func TestFillDefaults(t *testing.T) {
	// An older config file with only the UI section set.
	var cfg Config
	if err := json.Unmarshal([]byte(`{"ui":{"theme":"light","stream":true}}`), &cfg); err != nil {
		t.Fatal(err)
	}
	cfg.fillDefaults()

	if cfg.UI.Theme != "light" || !cfg.UI.Stream {
		t.Errorf("explicit values overwritten: %+v", cfg.UI)
	}
	if cfg.UI.Density != "expanded" {
		t.Errorf("density not defaulted: %q", cfg.UI.Density)
	}
	if cfg.Feed.StreamIntervalSeconds != 30 || cfg.Feed.ScanIntervalMs != 250 {
		t.Errorf("feed not defaulted: %+v", cfg.Feed)
	}
	if cfg.Provider.TimeoutSeconds != 30 || cfg.Provider.RequestsPerSecond != 1 {
		t.Errorf("provider not defaulted: %+v", cfg.Provider)
	}
}
