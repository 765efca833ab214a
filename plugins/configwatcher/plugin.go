// Package configwatcher reloads the cachenanny config file when it changes
// and pushes the nanny options it holds into the running manager.
package configwatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/cachenanny/internal/cliconfig"
	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/nanny"
)

// Target receives reloaded options. Both functions are called from the
// watcher goroutine; implementations hop onto the manager's dispatcher.
type Target struct {
	// Set applies one nanny option by name.
	Set func(ctx context.Context, name string, value any) error

	// Restart re-arms polling, if it is running, so new intervals apply.
	Restart func(ctx context.Context) error
}

// Plugin watches one config file.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	retryInterval time.Duration
	debounceDelay time.Duration
	logger        log.Logger
	base          cliconfig.Config
	changed       map[string]bool

	// Runtime state
	path     string
	target   Target
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	applied  nanny.Config
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// RetryInterval is the delay between attempts to start watching when
	// the config directory is not available yet.
	// Default: 5 seconds
	RetryInterval time.Duration

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Logger receives watcher diagnostics. Default: no-op.
	Logger log.Logger

	// Base is the configuration the file is layered on: defaults plus
	// command-line flags. A line removed from the file falls back to it.
	Base cliconfig.Config

	// Changed names the command-line flags that were set explicitly.
	// Neither the file nor the environment overrides them on reload.
	Changed map[string]bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval: 5 * time.Second,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}

	return &Plugin{
		retryInterval: cfg.RetryInterval,
		debounceDelay: cfg.DebounceDelay,
		logger:        cfg.Logger.With(log.String("component", "configwatcher")),
		base:          cfg.Base,
		changed:       cfg.Changed,
		applied:       cfg.Base.NannyConfig(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching path and delivers reloaded options to target.
func (p *Plugin) Initialize(ctx context.Context, path string, target Target) error {
	if path == "" {
		return errors.New("configwatcher: config path is required")
	}
	if target.Set == nil {
		return errors.New("configwatcher: target Set is required")
	}

	// The manager was started from the file as it is now.
	applied, err := p.resolve(path)
	if err != nil {
		p.logger.Warn("failed to resolve current config", log.Err(err))
		applied = p.base.NannyConfig()
	}

	p.mu.Lock()
	p.path = path
	p.target = target
	p.applied = applied
	p.mu.Unlock()

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher initialized", log.String("path", path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// watchLoop watches the directory holding the config file. Editors often
// replace files instead of writing them, so the directory is the watch
// target and events are filtered by name.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("failed to create watcher", log.Err(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	for {
		err := watcher.Add(dir)
		if err == nil {
			break
		}
		p.logger.Warn("failed to watch config directory, retrying",
			log.String("dir", dir),
			log.Duration("retry_in", p.retryInterval),
			log.Err(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
		}
	}

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := p.reload(ctx); err != nil {
			p.logger.Warn("config reload failed", log.Err(err))
		}
	})
}

// resolve layers the file and the environment on the base config with the
// same precedence the process started with.
func (p *Plugin) resolve(path string) (nanny.Config, error) {
	cfg := p.base

	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		return nanny.Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	if err := cliconfig.ApplyFileConfig(&cfg, fc, p.changed); err != nil {
		return nanny.Config{}, err
	}
	if err := cliconfig.ApplyEnvConfig(&cfg, p.changed); err != nil {
		return nanny.Config{}, err
	}
	return cfg.NannyConfig(), nil
}

// reload resolves the config again and pushes the nanny options that
// differ from what was last applied. Unset options keep their value.
func (p *Plugin) reload(ctx context.Context) error {
	p.mu.Lock()
	path, target, applied := p.path, p.target, p.applied
	p.mu.Unlock()

	next, err := p.resolve(path)
	if err != nil {
		return err
	}

	options := []struct {
		name   string
		value  any
		differ bool
		commit func(c *nanny.Config)
	}{
		{
			name:   nanny.OptionLoaderPath,
			value:  next.LoaderPath,
			differ: next.LoaderPath != "" && next.LoaderPath != applied.LoaderPath,
			commit: func(c *nanny.Config) { c.LoaderPath = next.LoaderPath },
		},
		{
			name:   nanny.OptionCheckInterval,
			value:  next.CheckInterval,
			differ: next.CheckInterval > 0 && next.CheckInterval != applied.CheckInterval,
			commit: func(c *nanny.Config) { c.CheckInterval = next.CheckInterval },
		},
		{
			name:   nanny.OptionOfflineCheckInterval,
			value:  next.OfflineCheckInterval,
			differ: next.OfflineCheckInterval > 0 && next.OfflineCheckInterval != applied.OfflineCheckInterval,
			commit: func(c *nanny.Config) { c.OfflineCheckInterval = next.OfflineCheckInterval },
		},
	}

	var errs []error
	updated := 0
	for _, opt := range options {
		if !opt.differ {
			continue
		}
		if err := target.Set(ctx, opt.name, opt.value); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", opt.name, err))
			continue
		}
		p.mu.Lock()
		opt.commit(&p.applied)
		p.mu.Unlock()
		updated++
	}

	if updated > 0 && target.Restart != nil {
		if err := target.Restart(ctx); err != nil {
			errs = append(errs, fmt.Errorf("restart polling: %w", err))
		}
	}

	p.logger.Info("config reloaded", log.Int("applied", updated))
	return errors.Join(errs...)
}
