package httpcache

import (
	"fmt"
	"net/url"

	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/log"
)

// Loader fetches the fallback resource that associates an uncached
// environment with its Cache.
type Loader struct {
	cache *Cache
}

// NewLoader creates a Loader for cache.
func NewLoader(cache *Cache) *Loader {
	return &Loader{cache: cache}
}

// Load GETs path relative to the manifest URL. On success the cache is
// associated, done receives it, and the first check starts. done always
// runs on the cache's dispatcher and never before Load returns.
func (l *Loader) Load(path string, done func(appcache.Cache, error)) {
	c := l.cache

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		target, err := l.fetch(path)

		c.dispatcher.Post(func() {
			if err != nil {
				done(nil, fmt.Errorf("%w: %w", appcache.ErrLoaderFailed, err))
				return
			}

			c.logger.Info("fallback resource loaded", log.String("url", target))
			c.associate()
			done(c, nil)

			if err := c.Update(); err != nil {
				c.logger.Warn("first check could not start", log.Err(err))
			}
		})
	}()
}

// fetch GETs path resolved against the manifest URL and returns the URL
// it requested.
func (l *Loader) fetch(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return path, fmt.Errorf("parse %q: %w", path, err)
	}
	target := l.cache.base.ResolveReference(ref).String()

	_, code, err := l.cache.fetch(target)
	if err != nil {
		return target, fmt.Errorf("%s: %w", target, err)
	}
	if code/100 != 2 {
		return target, fmt.Errorf("%s: server returned %d", target, code)
	}
	return target, nil
}
