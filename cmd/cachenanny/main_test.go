package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/cachenanny/internal/cliconfig"
	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/nanny"
	"github.com/bft-labs/cachenanny/pkg/state"
)

// newOrigin serves a one-resource manifest and the fallback page.
func newOrigin(t *testing.T, loaderCode int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/site.appcache", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("CACHE MANIFEST\n# v1\n/app.js\n"))
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("console.log('v1')\n"))
	})
	mux.HandleFunc(nanny.DefaultLoaderPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(loaderCode)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) cliconfig.Config {
	t.Helper()
	cfg := cliconfig.DefaultConfig()
	cfg.ManifestURL = srv.URL + "/site.appcache"
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return")
		return nil
	}
}

func TestRun_DownloadsAndShutsDown(t *testing.T) {
	srv := newOrigin(t, http.StatusOK)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("check_interval = 60000\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg := testConfig(t, srv)
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.ProbeInterval = 50 * time.Millisecond
	cfg.Watch = true
	src := configSource{path: cfgPath, base: cfg, changed: map[string]bool{}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg, src, log.NewNoopLogger()) }()

	manifest := filepath.Join(cfg.CacheDir, "current", "manifest")
	deadline := time.Now().Add(10 * time.Second)
	for !cliconfig.FileExists(manifest) {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("manifest never committed; run returned %v", waitRun(t, errCh))
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := waitRun(t, errCh); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	seen, err := state.NewFileFlagStore(cfg.StateDir).Seen(context.Background())
	if err != nil || !seen {
		t.Errorf("first-run marker seen = %v, err = %v, want true", seen, err)
	}
}

func TestRun_SetupFailureEndsRun(t *testing.T) {
	srv := newOrigin(t, http.StatusNotFound)
	cfg := testConfig(t, srv)

	errCh := make(chan error, 1)
	go func() { errCh <- run(context.Background(), cfg, configSource{base: cfg}, log.NewNoopLogger()) }()

	err := waitRun(t, errCh)
	var setupErr *nanny.SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("run() error = %v, want *nanny.SetupError", err)
	}
	if setupErr.LoaderPath != nanny.DefaultLoaderPath {
		t.Errorf("LoaderPath = %q, want %q", setupErr.LoaderPath, nanny.DefaultLoaderPath)
	}
}

func TestResolveConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	content := "manifest_url = \"https://example.com/site.appcache\"\n" +
		"cache_dir = \"" + filepath.ToSlash(filepath.Join(dir, "cache")) + "\"\n" +
		"check_interval = \"10m\"\n" +
		"offline_check_interval = 20000\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv(cliconfig.EnvPrefix+"OFFLINE_CHECK_INTERVAL", "40s")

	cfg := cliconfig.DefaultConfig()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.DurationVar(&cfg.CheckInterval, "check-interval", cfg.CheckInterval, "")
	flags.DurationVar(&cfg.OfflineCheckInterval, "offline-check-interval", cfg.OfflineCheckInterval, "")
	if err := flags.Parse([]string{"--check-interval=5s"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	src, err := resolveConfig(&cfg, cfgPath, flags)
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}

	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v, want 5s from the flag", cfg.CheckInterval)
	}
	if cfg.OfflineCheckInterval != 40*time.Second {
		t.Errorf("OfflineCheckInterval = %v, want 40s from the environment", cfg.OfflineCheckInterval)
	}
	if src.path != cfgPath || !src.changed["check-interval"] {
		t.Errorf("source = %+v, want path %s and check-interval changed", src, cfgPath)
	}
	if src.base.CheckInterval != 5*time.Second || src.base.ManifestURL != "" {
		t.Errorf("base = %+v, want flag values only", src.base)
	}
}
