// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// The package offers configurable time formatting, caller information,
// colorized output, and text or JSON formats, all applied at logger
// creation time using functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithTimeLayout("RFC3339Nano"),
//		log.WithCaller(true))
//
// Attributes can be added to a logger to be included in all subsequent
// log messages using the [Logger.With] method:
//
//	logger = logger.With(slog.String("component", "parser"))
//
// Each level has a context-aware and a context-unaware variant; the
// latter obtains its context from [DefaultContextProvider]. Five levels
// are supported: [LevelTrace], [LevelDebug], [LevelInfo], [LevelWarn],
// and [LevelError]. Trace sits below slog's debug level and is intended
// for per-line diagnostics during parsing and execution.
//
// A package-level default logger writing to stderr backs the top-level
// functions [Trace] through [Error]; reconfigure it with [Config].
package log
