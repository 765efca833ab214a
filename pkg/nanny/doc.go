// Package nanny manages the lifecycle of an offline resource cache.
//
// A [Manager] polls the cache for updates, makes sure setup runs exactly
// once, relays the cache's native events as its own, and tracks whether
// the cache is reachable from the outcome of those events.
//
// # Basic Usage
//
//	l := loop.New(logger, 64)
//	go l.Run(ctx)
//
//	cache := httpcache.New(manifestURL, dir, l)
//	m, err := nanny.New(nanny.Config{CheckInterval: time.Minute},
//	    cache, cache.Loader(), l,
//	    nanny.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//
//	_ = l.Call(ctx, func() {
//	    m.On(nanny.EventUpdateReady, func(events.Event) { ... })
//	    _ = m.Start()
//	})
//
// # Setup
//
// Start and Update need setup. Calls made before it finishes are queued
// and replayed in order once it does; the first of them triggers setup.
// When the cache is still uncached, setup loads the fallback resource at
// Config.LoaderPath. A failure there is reported as a [*SetupError] to the
// fatal handler and every later call returns it.
//
// # Events
//
// Start, stop and update requests emit start, stop and update. Cache
// events are re-emitted as updateready, error, obsolete, noupdate, cached,
// progress and downloading. During the first-ever download the success
// events carry the "init:" prefix until the first cached event.
//
// A failed manifest fetch emits offline and switches polling to
// Config.OfflineCheckInterval. The next successful event emits online and
// switches back.
//
// # Concurrency
//
// A Manager is a single actor. Its methods, its timer ticks and the events
// of its cache must all run on the same dispatcher, one at a time.
package nanny
