package nanny

import (
	"fmt"
	"time"
)

// Default option values.
const (
	DefaultLoaderPath           = "/appcache-loader.html"
	DefaultCheckInterval        = 30 * time.Second
	DefaultOfflineCheckInterval = 30 * time.Second
)

// Option names accepted by Manager.Get and Manager.Set.
const (
	OptionLoaderPath           = "loaderPath"
	OptionCheckInterval        = "checkInterval"
	OptionOfflineCheckInterval = "offlineCheckInterval"
)

// Config holds the options of a Manager. Zero values are replaced by the
// defaults in SetDefaults.
type Config struct {
	// LoaderPath locates the fallback resource loaded when the cache is
	// still uncached.
	LoaderPath string

	// CheckInterval is the poll cadence while the cache is reachable.
	CheckInterval time.Duration

	// OfflineCheckInterval is the poll cadence after a network error.
	OfflineCheckInterval time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LoaderPath:           DefaultLoaderPath,
		CheckInterval:        DefaultCheckInterval,
		OfflineCheckInterval: DefaultOfflineCheckInterval,
	}
}

// SetDefaults replaces zero values with defaults.
func (c *Config) SetDefaults() {
	if c.LoaderPath == "" {
		c.LoaderPath = DefaultLoaderPath
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.OfflineCheckInterval == 0 {
		c.OfflineCheckInterval = DefaultOfflineCheckInterval
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.CheckInterval < 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if c.OfflineCheckInterval < 0 {
		return fmt.Errorf("%w: offline check interval must be positive", ErrInvalidConfig)
	}
	return nil
}
