package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/cachenanny/internal/cliconfig"
	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/loop"
	"github.com/bft-labs/cachenanny/pkg/nanny"
)

// recordingTarget records Set and Restart calls.
type recordingTarget struct {
	mu       sync.Mutex
	sets     []string
	values   []any
	restarts int
	failOn   string
	restart  chan struct{}
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{restart: make(chan struct{}, 16)}
}

func (r *recordingTarget) target() Target {
	return Target{
		Set: func(ctx context.Context, name string, value any) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			if name == r.failOn {
				return errors.New("rejected")
			}
			r.sets = append(r.sets, name)
			r.values = append(r.values, value)
			return nil
		},
		Restart: func(ctx context.Context) error {
			r.mu.Lock()
			r.restarts++
			r.mu.Unlock()
			r.restart <- struct{}{}
			return nil
		},
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func TestPlugin_Reload(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		base         cliconfig.Config
		changed      map[string]bool
		applied      nanny.Config
		env          map[string]string
		failOn       string
		wantSets     []string
		wantValues   []any
		wantRestarts int
		wantErr      bool
	}{
		{
			name:         "pushes every changed option",
			content:      "loader_path = \"/boot.html\"\ncheck_interval = \"2m\"\noffline_check_interval = 5000\n",
			wantSets:     []string{nanny.OptionLoaderPath, nanny.OptionCheckInterval, nanny.OptionOfflineCheckInterval},
			wantValues:   []any{"/boot.html", 2 * time.Minute, 5 * time.Second},
			wantRestarts: 1,
		},
		{
			name:         "ignores unrelated fields",
			content:      "manifest_url = \"https://example.com/m\"\nlog_level = \"debug\"\n",
			wantRestarts: 0,
		},
		{
			name:    "skips options already applied",
			content: "check_interval = \"2m\"\n",
			applied: nanny.Config{CheckInterval: 2 * time.Minute},
		},
		{
			name:    "command-line flag wins over the file",
			content: "check_interval = \"10m\"\nlog_level = \"debug\"\n",
			base:    cliconfig.Config{CheckInterval: 5 * time.Second},
			changed: map[string]bool{"check-interval": true},
			applied: nanny.Config{CheckInterval: 5 * time.Second},
		},
		{
			name:         "environment wins over the file",
			content:      "check_interval = \"10m\"\n",
			env:          map[string]string{cliconfig.EnvPrefix + "CHECK_INTERVAL": "3m"},
			wantSets:     []string{nanny.OptionCheckInterval},
			wantValues:   []any{3 * time.Minute},
			wantRestarts: 1,
		},
		{
			name:    "command-line flag wins over the environment",
			content: "check_interval = \"10m\"\n",
			base:    cliconfig.Config{CheckInterval: 5 * time.Second},
			changed: map[string]bool{"check-interval": true},
			applied: nanny.Config{CheckInterval: 5 * time.Second},
			env:     map[string]string{cliconfig.EnvPrefix + "CHECK_INTERVAL": "3m"},
		},
		{
			name:         "removed line falls back to the base",
			content:      "log_level = \"info\"\n",
			base:         cliconfig.Config{CheckInterval: time.Minute},
			applied:      nanny.Config{CheckInterval: 10 * time.Minute},
			wantSets:     []string{nanny.OptionCheckInterval},
			wantValues:   []any{time.Minute},
			wantRestarts: 1,
		},
		{
			name:         "reports rejected options",
			content:      "check_interval = \"2m\"\noffline_check_interval = \"90s\"\n",
			failOn:       nanny.OptionOfflineCheckInterval,
			wantSets:     []string{nanny.OptionCheckInterval},
			wantValues:   []any{2 * time.Minute},
			wantRestarts: 1,
			wantErr:      true,
		},
		{
			name:    "invalid duration",
			content: "check_interval = \"soon\"\n",
			wantErr: true,
		},
		{
			name:    "invalid file",
			content: "this is not valid toml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.toml")
			writeConfig(t, path, tt.content)

			rec := newRecordingTarget()
			rec.failOn = tt.failOn
			p := New(Config{Base: tt.base, Changed: tt.changed})
			p.path = path
			p.target = rec.target()
			p.applied = tt.applied

			err := p.reload(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("reload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(rec.sets, tt.wantSets) {
				t.Errorf("sets = %v, want %v", rec.sets, tt.wantSets)
			}
			if !reflect.DeepEqual(rec.values, tt.wantValues) {
				t.Errorf("values = %v, want %v", rec.values, tt.wantValues)
			}
			if rec.restarts != tt.wantRestarts {
				t.Errorf("restarts = %d, want %d", rec.restarts, tt.wantRestarts)
			}
		})
	}
}

func TestPlugin_InitializeRecordsCurrentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "check_interval = \"2m\"\n")

	rec := newRecordingTarget()
	p := New(Config{RetryInterval: 50 * time.Millisecond, DebounceDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Initialize(ctx, path, rec.target()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer p.Shutdown(ctx)

	// Only log_level changes, so nothing is pushed.
	writeConfig(t, path, "check_interval = \"2m\"\nlog_level = \"debug\"\n")
	if err := p.reload(ctx); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if len(rec.sets) != 0 || rec.restarts != 0 {
		t.Errorf("sets = %v restarts = %d, want none", rec.sets, rec.restarts)
	}
}

func TestPlugin_WatchesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "log_level: info\n")

	rec := newRecordingTarget()
	p := New(Config{RetryInterval: 50 * time.Millisecond, DebounceDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Initialize(ctx, path, rec.target()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// The watch is added asynchronously; keep writing until it is seen.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for done := false; !done; {
		select {
		case <-rec.restart:
			done = true
		case <-tick.C:
			writeConfig(t, path, "check_interval: 45s\n")
		case <-deadline:
			t.Fatal("config change was never applied")
		}
	}

	rec.mu.Lock()
	sets := append([]string(nil), rec.sets...)
	rec.mu.Unlock()
	if len(sets) == 0 || sets[0] != nanny.OptionCheckInterval {
		t.Errorf("sets = %v, want checkInterval", sets)
	}

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_InitializeValidation(t *testing.T) {
	p := New(DefaultConfig())
	ctx := context.Background()

	if err := p.Initialize(ctx, "", newRecordingTarget().target()); err == nil {
		t.Error("Initialize() with empty path succeeded")
	}
	if err := p.Initialize(ctx, "/tmp/config.toml", Target{}); err == nil {
		t.Error("Initialize() without Set succeeded")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() before Initialize = %v", err)
	}
}

// idleCache is an always-cached appcache.Cache that never emits.
type idleCache struct{}

func (idleCache) Supported() bool                       { return true }
func (idleCache) Status() appcache.Status               { return appcache.StatusIdle }
func (idleCache) Update() error                         { return nil }
func (idleCache) SwapCache() error                      { return nil }
func (idleCache) Subscribe(func(appcache.Event)) func() { return func() {} }

func TestManagerTarget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := loop.New(nil, 8)
	go func() { _ = l.Run(ctx) }()

	m, err := nanny.New(nanny.Config{CheckInterval: time.Hour}, idleCache{}, nil, l)
	if err != nil {
		t.Fatalf("nanny.New() error = %v", err)
	}
	target := ManagerTarget(l, m)

	if err := target.Set(ctx, nanny.OptionCheckInterval, "2h"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := target.Set(ctx, nanny.OptionCheckInterval, "never"); !errors.Is(err, nanny.ErrInvalidOption) {
		t.Errorf("Set() error = %v, want ErrInvalidOption", err)
	}

	// Not polling yet: Restart must not start it.
	if err := target.Restart(ctx); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	var checking bool
	_ = l.Call(ctx, func() { checking = m.IsCheckingForUpdates() })
	if checking {
		t.Fatal("Restart started polling")
	}

	var interval time.Duration
	_ = l.Call(ctx, func() {
		_ = m.Start()
		interval = m.PollInterval()
		m.Stop()
	})
	if interval != 2*time.Hour {
		t.Errorf("PollInterval() = %v, want 2h", interval)
	}
}
