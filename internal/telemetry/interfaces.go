package telemetry

import (
	"log"
)

// Logger is the plain-text operator log used for failures that sit outside
// the structured event stream.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface. A nil LoggerFunc
// discards everything.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger. The result also exposes the
// underlying *log.Logger through StandardLogger.
func WrapLogger(logger *log.Logger) Logger {
	return &stdLogger{base: logger}
}

type stdLogger struct {
	base   *log.Logger
	prefix string
}

func (l *stdLogger) Printf(format string, args ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Printf(l.prefix+format, args...)
}

func (l *stdLogger) StandardLogger() *log.Logger {
	if l == nil {
		return nil
	}
	return l.base
}

// Named scopes logger to a component: every line is prefixed with
// "[component] ". Nil loggers stay silent.
func Named(logger Logger, component string) Logger {
	if logger == nil {
		return LoggerFunc(nil)
	}
	tag := "[" + component + "] "
	if std, ok := logger.(*stdLogger); ok {
		return &stdLogger{base: std.base, prefix: std.prefix + tag}
	}
	return LoggerFunc(func(format string, args ...any) {
		logger.Printf(tag+format, args...)
	})
}

// Metrics feeds the instrument set. Add increments a monotonic counter and
// Store sets a gauge.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

func NopMetrics() Metrics {
	return nopMetrics{}
}
