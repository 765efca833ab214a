package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/cachenanny/internal/cliconfig"
	"github.com/bft-labs/cachenanny/internal/metrics"
	"github.com/bft-labs/cachenanny/internal/reachability"
	"github.com/bft-labs/cachenanny/pkg/events"
	"github.com/bft-labs/cachenanny/pkg/httpcache"
	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/loop"
	"github.com/bft-labs/cachenanny/pkg/nanny"
	"github.com/bft-labs/cachenanny/pkg/state"
	"github.com/bft-labs/cachenanny/plugins/configwatcher"
)

const helpDescription = `
Keep an offline copy of a site's cache manifest fresh.

cachenanny downloads every resource listed in the manifest, polls it for
changes, stages updates and swaps them in as soon as they are complete.
While the manifest is unreachable it backs off to the offline check interval
and switches back once a check succeeds.

Configure via file ($HOME/.cachenanny/config.toml, or .yaml/.json),
CACHENANNY_* environment variables, or flags. Flags win over environment,
environment wins over the file.
`

var exampleUsage = strings.TrimSpace(`
  cachenanny --manifest-url https://example.com/site.appcache
  cachenanny --config ./cachenanny.yaml --watch --metrics-addr :9464
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "cachenanny",
		Short:         "Keep an offline resource cache up to date",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := resolveConfig(&cfg, cfgPath, cmd.Flags())
			if err != nil {
				return err
			}

			zl, err := cliconfig.Logger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			zl.Info().Interface("config", cfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, src, log.NewZerologAdapterWithLogger(zl))
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.cachenanny/config.toml)")
	root.Flags().StringVar(&cfg.ManifestURL, "manifest-url", cfg.ManifestURL, "URL of the cache manifest")
	root.Flags().StringVar(&cfg.LoaderPath, "loader-path", cfg.LoaderPath, "fallback resource loaded while the cache is uncached")

	root.Flags().DurationVar(&cfg.CheckInterval, "check-interval", cfg.CheckInterval, "update check interval while online")
	root.Flags().DurationVar(&cfg.OfflineCheckInterval, "offline-check-interval", cfg.OfflineCheckInterval, "update check interval after a network error")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().DurationVar(&cfg.ProbeInterval, "probe-interval", cfg.ProbeInterval, "host reachability probe interval (0 disables probing)")

	root.Flags().StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory holding cached resources (default: $HOME/.cachenanny/cache)")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for nanny.json (defaults to cache-dir)")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for /metrics and /status (empty disables)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload intervals and loader path when the config file changes")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cachenanny:", err)
		os.Exit(1)
	}
}

// configSource records how the configuration was resolved so reloads can
// keep the same precedence.
type configSource struct {
	// path is the config file in use, or empty.
	path string
	// base holds defaults plus command-line flags.
	base    cliconfig.Config
	changed map[string]bool
}

// resolveConfig layers the config file and the environment over the flag
// values already in cfg, then validates the result.
func resolveConfig(cfg *cliconfig.Config, cfgPath string, flags *pflag.FlagSet) (configSource, error) {
	src := configSource{path: cfgPath, base: *cfg, changed: map[string]bool{}}
	if src.path == "" {
		src.path = cliconfig.DefaultConfigPath()
	}

	// Build set of changed flags
	flags.Visit(func(f *pflag.Flag) { src.changed[f.Name] = true })

	if src.path != "" && cliconfig.FileExists(src.path) {
		fc, err := cliconfig.LoadFileConfig(src.path)
		if err != nil {
			return src, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, src.changed); err != nil {
			return src, err
		}
	} else {
		src.path = ""
	}

	// Environment overrides the file; changed flags override both.
	if err := cliconfig.ApplyEnvConfig(cfg, src.changed); err != nil {
		return src, err
	}

	return src, cfg.Validate()
}

// run supervises the cache until ctx is done or setup fails.
func run(ctx context.Context, cfg cliconfig.Config, src configSource, logger log.Logger) error {
	// The loop outlives ctx so the manager can be closed on it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	l := loop.New(logger.With(log.String("component", "loop")), 64)
	go func() { _ = l.Run(loopCtx) }()

	cache, err := httpcache.New(cfg.ManifestURL, cfg.CacheDir, l,
		httpcache.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		httpcache.WithLogger(logger.With(log.String("component", "httpcache"))),
	)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer cache.Close()

	fatalCh := make(chan error, 1)
	opts := []nanny.Option{
		nanny.WithLogger(logger.With(log.String("component", "nanny"))),
		nanny.WithFlagStore(state.NewFileFlagStore(cfg.StateDir)),
		nanny.WithFatalHandler(func(err error) {
			select {
			case fatalCh <- err:
			default:
			}
		}),
	}

	if cfg.ProbeInterval > 0 {
		prober, err := reachability.New(cfg.ManifestURL, cfg.ProbeInterval, l, logger)
		if err != nil {
			return fmt.Errorf("create prober: %w", err)
		}
		go prober.Run(ctx)
		opts = append(opts, nanny.WithReachability(prober))
	}

	m, err := nanny.New(cfg.NannyConfig(), cache, httpcache.NewLoader(cache), l, opts...)
	if err != nil {
		return fmt.Errorf("create nanny: %w", err)
	}

	if err := l.Call(ctx, func() { logEvents(m, logger) }); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector, err := metrics.New(reg)
		if err != nil {
			return err
		}
		if err := l.Call(ctx, func() { collector.Attach(m) }); err != nil {
			return err
		}

		status := func(ctx context.Context) (nanny.Status, error) {
			var s nanny.Status
			err := l.Call(ctx, func() { s = m.Snapshot() })
			return s, err
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, metrics.Router(reg, status), logger); err != nil {
				logger.Error("metrics server failed", log.Err(err))
			}
		}()
	}

	var startErr error
	if err := l.Call(ctx, func() { startErr = m.Start() }); err != nil {
		return err
	}
	if startErr != nil {
		return fmt.Errorf("start: %w", startErr)
	}

	if cfg.Watch && src.path != "" {
		watcher := configwatcher.New(configwatcher.Config{
			Logger:  logger,
			Base:    src.base,
			Changed: src.changed,
		})
		if err := watcher.Initialize(ctx, src.path, configwatcher.ManagerTarget(l, m)); err != nil {
			return err
		}
		defer watcher.Shutdown(context.Background())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, stopping...")
	case err := <-fatalCh:
		runErr = err
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Call(closeCtx, m.Close); err != nil && !errors.Is(err, loop.ErrStopped) {
		logger.Warn("failed to close nanny", log.Err(err))
	}

	stopLoop()
	if err := l.WaitWithTimeout(5 * time.Second); err != nil {
		logger.Warn("timers did not stop", log.Err(err))
	}
	return runErr
}

// logEvents writes every nanny event to the log.
func logEvents(m *nanny.Manager, logger log.Logger) {
	for _, typ := range nanny.EventTypes() {
		m.On(typ, func(ev events.Event) {
			switch ev.Type {
			case nanny.EventError, nanny.EventOffline:
				logger.Warn("nanny event", log.Event(ev.Type))
			case nanny.EventStart, nanny.EventStop, nanny.EventUpdate, nanny.EventNoUpdate, nanny.EventProgress:
				logger.Debug("nanny event", log.Event(ev.Type))
			default:
				logger.Info("nanny event", log.Event(ev.Type))
			}
		})
	}
}
