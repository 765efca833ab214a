// Package log provides the logging port used by cachenanny components.
//
// Components depend on the [Logger] interface only. A zerolog-backed
// implementation is provided for binaries and a no-op implementation is
// the default for library users who do not pass a logger.
//
// # Usage
//
//	logger := log.NewZerologAdapter(zerolog.InfoLevel)
//	m, err := nanny.New(cache, loader, dispatcher, nanny.WithLogger(logger))
//
// Child loggers carry fixed fields:
//
//	cacheLog := logger.With(log.String("component", "httpcache"))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
