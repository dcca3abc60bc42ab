package modlife

// Logger defines the interface for structured logging across the core.
// All orchestration operations (dependency resolution, saga execution,
// schema updates, activation and deactivation) log through this
// interface, so host applications control how core logs appear.
//
// The interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// which is directly compatible with slog, logrus, zap's sugared logger,
// and similar structured logging libraries.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// NopLogger is a Logger that discards everything. Constructors fall back
// to it when the caller does not supply a logger.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Debug(string, ...any) {}
