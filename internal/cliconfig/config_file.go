package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a duration as written in a config file: a Go duration
// string ("30s") or an integer number of milliseconds (30000).
type Duration string

// UnmarshalText accepts both TOML strings and TOML integers, whose raw
// text may use digit separators.
func (d *Duration) UnmarshalText(b []byte) error {
	s := string(b)
	if digits := strings.ReplaceAll(s, "_", ""); digits != s {
		if _, err := strconv.ParseInt(digits, 10, 64); err == nil {
			s = digits
		}
	}
	*d = Duration(s)
	return nil
}

// UnmarshalJSON accepts a JSON string or integer.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = Duration(s)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("duration must be a string or integer milliseconds, got %s", b)
	}
	*d = Duration(strconv.FormatInt(ms, 10))
	return nil
}

// UnmarshalYAML accepts any YAML scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	*d = Duration(value.Value)
	return nil
}

// FileConfig mirrors Config with file-friendly durations.
type FileConfig struct {
	ManifestURL          string   `toml:"manifest_url" yaml:"manifest_url" json:"manifest_url"`
	LoaderPath           string   `toml:"loader_path" yaml:"loader_path" json:"loader_path"`
	CheckInterval        Duration `toml:"check_interval" yaml:"check_interval" json:"check_interval"`
	OfflineCheckInterval Duration `toml:"offline_check_interval" yaml:"offline_check_interval" json:"offline_check_interval"`
	HTTPTimeout          Duration `toml:"http_timeout" yaml:"http_timeout" json:"http_timeout"`
	ProbeInterval        Duration `toml:"probe_interval" yaml:"probe_interval" json:"probe_interval"`
	CacheDir             string   `toml:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
	StateDir             string   `toml:"state_dir" yaml:"state_dir" json:"state_dir"`
	MetricsAddr          string   `toml:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr"`
	LogLevel             string   `toml:"log_level" yaml:"log_level" json:"log_level"`
	Watch                *bool    `toml:"watch" yaml:"watch" json:"watch"`
}

// LoadFileConfig reads and parses a config file. The format follows the
// extension: .yaml/.yml, .json, otherwise TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	case ".json":
		err = json.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.cachenanny/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".cachenanny", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("manifest-url", fc.ManifestURL, &cfg.ManifestURL)
	s.setString("loader-path", fc.LoaderPath, &cfg.LoaderPath)
	s.setString("cache-dir", fc.CacheDir, &cfg.CacheDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("check-interval", string(fc.CheckInterval), &cfg.CheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("offline-check-interval", string(fc.OfflineCheckInterval), &cfg.OfflineCheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", string(fc.HTTPTimeout), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("probe-interval", string(fc.ProbeInterval), &cfg.ProbeInterval); err != nil {
		return err
	}

	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
