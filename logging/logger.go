package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a LogLevel. Unknown names
// resolve to LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface for taskmesh components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// RuntimeLogger wraps slog.Logger adding scoping helpers (component,
// correlation id, worker) and record helpers for the orchestration path.
// It is cheap to copy via the With* methods.
type RuntimeLogger struct {
	logger        *slog.Logger
	level         LogLevel
	context       map[string]any
	component     string
	correlationID string
}

// LoggerConfig configures construction of a RuntimeLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a RuntimeLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *RuntimeLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &RuntimeLogger{logger: slog.New(handler), level: cfg.Level, context: ctx, component: cfg.Component}
}

// NewSlogLogger creates a new RuntimeLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *RuntimeLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *RuntimeLogger) clone() *RuntimeLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *RuntimeLogger) WithContext(key string, value any) *RuntimeLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (worker, controlplane, launcher, ...).
func (l *RuntimeLogger) WithComponent(c string) *RuntimeLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithCorrelation attaches a correlation id to every entry.
func (l *RuntimeLogger) WithCorrelation(id string) *RuntimeLogger {
	nl := l.clone()
	nl.correlationID = id
	return nl
}

func (l *RuntimeLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", l.correlationID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *RuntimeLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	attrs = append(attrs, argsToAttrs(args)...)
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// argsToAttrs converts alternating key/value pairs into attributes. A dangling
// key or a non-string key is reported under "!BADKEY", matching slog.
func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			attrs = append(attrs, slog.Any("!BADKEY", args[i]))
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
		i++
	}
	return attrs
}

// Debug logs at debug level.
func (l *RuntimeLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *RuntimeLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *RuntimeLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *RuntimeLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogRouting records an orchestrator decision.
func (l *RuntimeLogger) LogRouting(strategy, worker string, candidates int, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs,
		slog.String("strategy", strategy),
		slog.String("worker", worker),
		slog.Int("candidates", candidates),
		slog.Duration("duration", dur),
	)
	level := slog.LevelInfo
	msg := "Routing decision made"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "Routing failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogExecution records the outcome of a worker executing one task.
func (l *RuntimeLogger) LogExecution(worker string, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("worker", worker), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Task execution completed"
	if !success {
		level = slog.LevelError
		msg = "Task execution failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogDispatch records an envelope leaving a component.
func (l *RuntimeLogger) LogDispatch(kind, topic string, hop int) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("kind", kind), slog.String("topic", topic), slog.Int("hop", hop))
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "Envelope dispatched", attrs...)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *RuntimeLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Info("Operation completed", "operation", op, "duration", time.Since(start)) }
}

// Unwrap returns the underlying *slog.Logger.
func (l *RuntimeLogger) Unwrap() *slog.Logger { return l.logger }

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// OrNoOp returns l, or NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// ForComponent tags l with a component name when l is a RuntimeLogger.
func ForComponent(l Logger, component string) Logger {
	if rl, ok := l.(*RuntimeLogger); ok {
		return rl.WithComponent(component)
	}
	return OrNoOp(l)
}

// Routing records a routing decision on any Logger.
func Routing(l Logger, strategy, worker string, candidates int, dur time.Duration, err error) {
	if rl, ok := l.(*RuntimeLogger); ok {
		rl.LogRouting(strategy, worker, candidates, dur, err)
		return
	}
	if err != nil {
		OrNoOp(l).Error("orchestrator.route.error", "strategy", strategy, "candidates", candidates, "error", err.Error())
		return
	}
	OrNoOp(l).Info("orchestrator.route.selected", "strategy", strategy, "worker", worker, "candidates", candidates, "duration_ms", dur.Milliseconds())
}

// Execution records a task outcome on any Logger.
func Execution(l Logger, correlationID, worker string, dur time.Duration, err error) {
	if rl, ok := l.(*RuntimeLogger); ok {
		rl.WithCorrelation(correlationID).LogExecution(worker, dur, err == nil, err)
		return
	}
	if err != nil {
		OrNoOp(l).Error("worker.task.failed", "correlation_id", correlationID, "worker", worker, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	OrNoOp(l).Info("worker.task.executed", "correlation_id", correlationID, "worker", worker, "duration_ms", dur.Milliseconds())
}

// Dispatch records an envelope leaving a component on any Logger.
func Dispatch(l Logger, correlationID, kind, topic string, hop int) {
	if rl, ok := l.(*RuntimeLogger); ok {
		rl.WithCorrelation(correlationID).LogDispatch(kind, topic, hop)
		return
	}
	OrNoOp(l).Debug("envelope.dispatched", "correlation_id", correlationID, "kind", kind, "topic", topic, "hop", hop)
}
