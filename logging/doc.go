// Package logging provides the minimal logging interface used across taskmesh
// and a couple of adapters for it.
//
// Every component (channel backends, workers, orchestrator, control plane,
// launcher) accepts a Logger through its Options struct and falls back to
// NoOpLogger when none is supplied. The package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - ZapAdapter wrapping a *zap.Logger (NewZapLogger builds one)
//   - RuntimeLogger, a slog based logger with component / correlation scoping
//     and helpers for routing, dispatch and execution records
//   - NoOpLogger for silent operation (tests, embedding applications)
//   - NewRotatingWriter, a size-rotated file output usable by either backend
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	cp := controlplane.New(ch, orch, func(o *controlplane.Options) { o.Logger = logger })
//
// Arguments after the message are alternating key/value pairs, exactly like
// log/slog.
package logging
