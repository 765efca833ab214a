package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "CACHENANNY_"

// ApplyEnvConfig applies CACHENANNY_* environment variables to cfg.
// It respects flags that have been explicitly set (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("manifest-url", os.Getenv(EnvPrefix+"MANIFEST_URL"), &cfg.ManifestURL)
	s.setString("loader-path", os.Getenv(EnvPrefix+"LOADER_PATH"), &cfg.LoaderPath)
	s.setString("cache-dir", os.Getenv(EnvPrefix+"CACHE_DIR"), &cfg.CacheDir)
	s.setString("state-dir", os.Getenv(EnvPrefix+"STATE_DIR"), &cfg.StateDir)
	s.setString("metrics-addr", os.Getenv(EnvPrefix+"METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("check-interval", os.Getenv(EnvPrefix+"CHECK_INTERVAL"), &cfg.CheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("offline-check-interval", os.Getenv(EnvPrefix+"OFFLINE_CHECK_INTERVAL"), &cfg.OfflineCheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv(EnvPrefix+"HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("probe-interval", os.Getenv(EnvPrefix+"PROBE_INTERVAL"), &cfg.ProbeInterval); err != nil {
		return err
	}

	s.setBoolFromString("watch", os.Getenv(EnvPrefix+"WATCH"), &cfg.Watch)

	return nil
}
