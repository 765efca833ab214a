package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/cachenanny/pkg/nanny"
)

// Config holds CLI configuration for cachenanny.
type Config struct {
	ManifestURL string
	LoaderPath  string

	CheckInterval        time.Duration
	OfflineCheckInterval time.Duration
	HTTPTimeout          time.Duration
	ProbeInterval        time.Duration

	CacheDir    string
	StateDir    string
	MetricsAddr string
	LogLevel    string
	Watch       bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LoaderPath:           nanny.DefaultLoaderPath,
		CheckInterval:        nanny.DefaultCheckInterval,
		OfflineCheckInterval: nanny.DefaultOfflineCheckInterval,
		HTTPTimeout:          15 * time.Second,
		LogLevel:             "info",
		CacheDir:             "", // Derived from the home directory during Validate
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ManifestURL == "" {
		return fmt.Errorf("manifest-url is required")
	}
	u, err := url.Parse(c.ManifestURL)
	if err != nil {
		return fmt.Errorf("parse manifest-url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("manifest-url must be http or https")
	}

	if c.LoaderPath == "" {
		c.LoaderPath = nanny.DefaultLoaderPath
	}

	if c.CacheDir == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cache-dir is required (no home directory)")
		}
		c.CacheDir = filepath.Join(h, ".cachenanny", "cache")
	}
	if c.StateDir == "" {
		c.StateDir = c.CacheDir
	}

	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive")
	}
	if c.OfflineCheckInterval <= 0 {
		return fmt.Errorf("offline check interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.ProbeInterval < 0 {
		return fmt.Errorf("probe interval must not be negative")
	}

	c.LogLevel = strings.ToLower(c.LogLevel)
	return nil
}

// NannyConfig returns the options handed to nanny.New.
func (c Config) NannyConfig() nanny.Config {
	return nanny.Config{
		LoaderPath:           c.LoaderPath,
		CheckInterval:        c.CheckInterval,
		OfflineCheckInterval: c.OfflineCheckInterval,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
// A bare integer is read as milliseconds.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
