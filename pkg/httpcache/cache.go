package httpcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/loop"
)

const (
	currentDir   = "current"
	stagedDir    = "staged"
	incomingDir  = "incoming"
	retiredDir   = "retired"
	manifestFile = "manifest"

	defaultHTTPTimeout = 30 * time.Second
)

// Cache is an HTTP-backed offline resource cache.
type Cache struct {
	manifestURL string
	base        *url.URL
	dir         string
	dispatcher  loop.Dispatcher
	client      HTTPClient
	logger      log.Logger
	supported   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	status     appcache.Status
	associated bool
	checking   bool
	latest     []byte
	subs       []subscriber
	nextID     int
}

type subscriber struct {
	id int
	fn func(appcache.Event)
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the client used for manifest and resource requests.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Cache) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithSupported overrides the support probe. Hosts that cannot keep an
// offline cache pass false.
func WithSupported(supported bool) Option {
	return func(c *Cache) {
		c.supported = supported
	}
}

// New creates a cache for the manifest at manifestURL, stored under dir.
// Events are posted to dispatcher. Generations already on disk are
// picked up, so a restarted process starts IDLE or UPDATEREADY.
func New(manifestURL, dir string, dispatcher loop.Dispatcher, opts ...Option) (*Cache, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("manifest url must be http or https, got %q", manifestURL)
	}
	if dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		manifestURL: manifestURL,
		base:        base,
		dir:         dir,
		dispatcher:  dispatcher,
		client:      &http.Client{Timeout: defaultHTTPTimeout},
		logger:      log.NewNoopLogger(),
		supported:   true,
		ctx:         ctx,
		cancel:      cancel,
		status:      appcache.StatusUncached,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.restore()
	return c, nil
}

func (c *Cache) restore() {
	current, err := os.ReadFile(filepath.Join(c.dir, currentDir, manifestFile))
	if err != nil {
		// Without an active generation a staged one is meaningless.
		_ = os.RemoveAll(filepath.Join(c.dir, stagedDir))
		return
	}
	c.status = appcache.StatusIdle
	c.associated = true
	c.latest = current

	staged, err := os.ReadFile(filepath.Join(c.dir, stagedDir, manifestFile))
	if err == nil {
		c.status = appcache.StatusUpdateReady
		c.latest = staged
	}

	c.logger.Debug("restored cache from disk",
		log.String("dir", c.dir),
		log.String("status", c.status.String()),
	)
}

// Supported reports whether the cache can be used.
func (c *Cache) Supported() bool {
	return c.supported
}

// Status returns the current status.
func (c *Cache) Status() appcache.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Update starts an asynchronous manifest check. Only one check runs at a
// time; a request made while one is in flight is ignored.
func (c *Cache) Update() error {
	c.mu.Lock()
	switch {
	case c.status == appcache.StatusObsolete:
		c.mu.Unlock()
		return appcache.ErrObsolete
	case c.status == appcache.StatusUncached && !c.associated:
		c.mu.Unlock()
		return fmt.Errorf("%w: cache is not associated yet", appcache.ErrInvalidState)
	case c.checking:
		c.mu.Unlock()
		c.logger.Debug("check already in flight")
		return nil
	}
	prev := c.status
	c.checking = true
	c.status = appcache.StatusChecking
	c.wg.Add(1)
	c.mu.Unlock()

	go c.check(prev)
	return nil
}

// SwapCache makes a staged update the active generation.
func (c *Cache) SwapCache() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != appcache.StatusUpdateReady {
		return fmt.Errorf("%w: no update to swap in (status %s)", appcache.ErrInvalidState, c.status)
	}

	current := filepath.Join(c.dir, currentDir)
	staged := filepath.Join(c.dir, stagedDir)
	retired := filepath.Join(c.dir, retiredDir)

	if err := os.RemoveAll(retired); err != nil {
		return fmt.Errorf("clear retired generation: %w", err)
	}
	if err := os.Rename(current, retired); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("retire current generation: %w", err)
	}
	if err := os.Rename(staged, current); err != nil {
		_ = os.Rename(retired, current)
		return fmt.Errorf("promote staged generation: %w", err)
	}
	if err := os.RemoveAll(retired); err != nil {
		c.logger.Warn("failed to remove retired generation", log.Err(err))
	}

	c.status = appcache.StatusIdle
	c.logger.Info("swapped in staged update")
	return nil
}

// Subscribe registers fn for native events. fn runs on the dispatcher.
func (c *Cache) Subscribe(fn func(appcache.Event)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Lookup returns the local path of a cached resource. rawURL may be
// relative to the manifest URL.
func (c *Cache) Lookup(rawURL string) (string, bool) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	abs := c.base.ResolveReference(ref)
	abs.Fragment = ""

	path := filepath.Join(c.dir, currentDir, resourceName(abs.String()))
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Close cancels in-flight requests and waits for them to finish.
func (c *Cache) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Cache) associate() {
	c.mu.Lock()
	c.associated = true
	c.mu.Unlock()
}

func (c *Cache) check(prev appcache.Status) {
	defer c.wg.Done()

	c.post(appcache.Event{Type: appcache.EventChecking})

	body, code, err := c.fetch(c.manifestURL)
	if err != nil {
		c.fail(prev, err)
		return
	}

	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		if prev == appcache.StatusUncached {
			c.fail(prev, fmt.Errorf("manifest returned %d", code))
			return
		}
		c.logger.Info("manifest removed, cache is obsolete", log.Int("status_code", code))
		c.complete(appcache.StatusObsolete, appcache.Event{Type: appcache.EventObsolete})
		return
	case code/100 != 2:
		c.fail(prev, fmt.Errorf("manifest returned %d", code))
		return
	}

	c.mu.Lock()
	unchanged := prev != appcache.StatusUncached && bytes.Equal(body, c.latest)
	c.mu.Unlock()
	if unchanged {
		c.complete(prev, appcache.Event{Type: appcache.EventNoUpdate})
		return
	}

	manifest, err := ParseManifest(bytes.NewReader(body))
	if err != nil {
		c.fail(prev, err)
		return
	}
	urls, err := manifest.Resolve(c.manifestURL)
	if err != nil {
		c.fail(prev, err)
		return
	}

	c.mu.Lock()
	c.status = appcache.StatusDownloading
	c.mu.Unlock()
	c.post(appcache.Event{Type: appcache.EventDownloading})

	incoming := filepath.Join(c.dir, incomingDir)
	if err := c.download(incoming, body, urls); err != nil {
		_ = os.RemoveAll(incoming)
		c.fail(prev, err)
		return
	}

	if prev == appcache.StatusUncached {
		if err := promote(incoming, filepath.Join(c.dir, currentDir)); err != nil {
			c.fail(prev, err)
			return
		}
		c.setLatest(body)
		c.logger.Info("initial download committed", log.Int("resources", len(urls)))
		c.complete(appcache.StatusIdle, appcache.Event{Type: appcache.EventCached})
		return
	}

	if err := promote(incoming, filepath.Join(c.dir, stagedDir)); err != nil {
		c.fail(prev, err)
		return
	}
	c.setLatest(body)
	c.logger.Info("update staged", log.Int("resources", len(urls)))
	c.complete(appcache.StatusUpdateReady, appcache.Event{Type: appcache.EventUpdateReady})
}

func (c *Cache) download(dir string, manifest []byte, urls []string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear incoming dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create incoming dir: %w", err)
	}

	for i, u := range urls {
		if err := c.fetchTo(u, filepath.Join(dir, resourceName(u))); err != nil {
			return fmt.Errorf("download %s: %w", u, err)
		}
		c.post(appcache.Event{Type: appcache.EventProgress, Loaded: i + 1, Total: len(urls)})
	}

	if err := os.WriteFile(filepath.Join(dir, manifestFile), manifest, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// fail restores prev and reports err as an error event.
func (c *Cache) fail(prev appcache.Status, err error) {
	c.logger.Warn("cache check failed", log.String("manifest", c.manifestURL), log.Err(err))
	c.complete(prev, appcache.Event{Type: appcache.EventError, Err: err})
}

// complete publishes the outcome of a check. Status and the check slot
// change on the dispatcher right before the final event is emitted, so a
// handler reacting to it can start the next check.
func (c *Cache) complete(status appcache.Status, ev appcache.Event) {
	c.dispatcher.Post(func() {
		c.mu.Lock()
		c.status = status
		c.checking = false
		c.mu.Unlock()

		c.emit(ev)
	})
}

func (c *Cache) setLatest(body []byte) {
	c.mu.Lock()
	c.latest = body
	c.mu.Unlock()
}

func (c *Cache) post(ev appcache.Event) {
	c.dispatcher.Post(func() { c.emit(ev) })
}

func (c *Cache) emit(ev appcache.Event) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

func (c *Cache) newRequest(rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "cachenanny/"+Version)
	req.Header.Set("Cache-Control", "no-cache")
	return req, nil
}

// fetch returns the body and status code of a GET. Non-2xx responses are
// not errors here.
func (c *Cache) fetch(rawURL string) ([]byte, int, error) {
	req, err := c.newRequest(rawURL)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Cache) fetchTo(rawURL, path string) error {
	req, err := c.newRequest(rawURL)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}

// promote replaces dst with src.
func promote(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clear %s: %w", filepath.Base(dst), err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("promote %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// resourceName maps a resource URL to its file name on disk.
func resourceName(rawURL string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(rawURL))
}
