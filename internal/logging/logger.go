package logging

import (
	"fmt"
	"reflect"
)

// Logger defines a minimal, printf-style logging contract shared by every
// component in the pipeline.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

type multiLogger struct {
	loggers []Logger
}

// Multi returns a logger fan-out that calls every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, logger := range loggers {
		if IsNil(logger) {
			continue
		}
		if ml, ok := logger.(*multiLogger); ok {
			flattened = append(flattened, ml.loggers...)
			continue
		}
		flattened = append(flattened, logger)
	}
	if len(flattened) == 0 {
		return Nop()
	}
	if len(flattened) == 1 {
		return flattened[0]
	}
	return &multiLogger{loggers: flattened}
}

func (l *multiLogger) Debug(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Debug(format, args...)
	}
}

func (l *multiLogger) Info(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Info(format, args...)
	}
}

func (l *multiLogger) Warn(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Warn(format, args...)
	}
}

func (l *multiLogger) Error(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Error(format, args...)
	}
}

type prefixLogger struct {
	prefix string
	inner  Logger
}

// WithPrefix wraps logger so every message carries the given prefix.
func WithPrefix(prefix string, logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return &prefixLogger{prefix: prefix, inner: logger}
}

func (l *prefixLogger) Debug(format string, args ...any) {
	l.inner.Debug("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *prefixLogger) Info(format string, args ...any) {
	l.inner.Info("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *prefixLogger) Warn(format string, args ...any) {
	l.inner.Warn("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *prefixLogger) Error(format string, args ...any) {
	l.inner.Error("%s", l.prefix+fmt.Sprintf(format, args...))
}
