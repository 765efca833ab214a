// Package httpcache keeps the resources listed in a cache manifest on local
// disk and implements [appcache.Cache] on top of them.
//
// A manifest is a text document served over HTTP:
//
//	CACHE MANIFEST
//	# v42
//	index.html
//	app.js
//
//	NETWORK:
//	*
//
//	FALLBACK:
//	/ /offline.html
//
// Entries in the CACHE section (the default section) are downloaded and
// resolved against the manifest URL. NETWORK, FALLBACK and SETTINGS are
// parsed and exposed on [Manifest] but never downloaded.
//
// # Layout
//
// The cache directory holds two generations:
//
//	<dir>/current/   the active manifest and resources
//	<dir>/staged/    a downloaded update waiting for SwapCache
//
// A first download is committed to current directly and reported as
// "cached". Later changes are staged and reported as "updateready".
//
// # Usage
//
//	l := loop.New(logger, 64)
//	go l.Run(ctx)
//
//	cache, err := httpcache.New(manifestURL, dir, l, httpcache.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	m, err := nanny.New(cfg, cache, httpcache.NewLoader(cache), l)
//
// Events and loader completions are posted to the dispatcher passed to New.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package httpcache
