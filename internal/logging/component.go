package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	sharedSink     *sink
	sharedSinkOnce sync.Once
)

// sink is the process-wide log destination: stderr plus an optional debug file
// under the user's home directory.
type sink struct {
	mu     sync.Mutex
	file   *os.File
	logger *log.Logger
	level  Level
}

func defaultSink() *sink {
	sharedSinkOnce.Do(func() {
		sharedSink = &sink{level: LevelInfo, logger: log.New(os.Stderr, "", 0)}
		if os.Getenv("YUANFANG_DEBUG") != "" {
			sharedSink.level = LevelDebug
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		path := filepath.Join(home, "yuanfang-debug.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		sharedSink.file = file
	})
	return sharedSink
}

// SetLevel adjusts the minimum severity emitted by component loggers.
func SetLevel(level Level) {
	s := defaultSink()
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

func (s *sink) write(level Level, component, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level && s.file == nil {
		return
	}

	_, fileName, line, ok := runtime.Caller(3)
	location := ""
	if ok {
		location = fmt.Sprintf(" %s:%d", filepath.Base(fileName), line)
	}

	msg := fmt.Sprintf(format, args...)
	entry := fmt.Sprintf("%s [%s] [%s]%s %s",
		time.Now().Format("2006-01-02 15:04:05.000"), level, component, location, msg)

	if level >= s.level {
		s.logger.Print(entry)
	}
	if s.file != nil {
		fmt.Fprintln(s.file, entry)
	}
}

// componentLogger scopes the shared sink to a named component.
type componentLogger struct {
	component string
	sink      *sink
}

// NewComponentLogger creates a logger for a specific component.
func NewComponentLogger(component string) Logger {
	return &componentLogger{component: component, sink: defaultSink()}
}

func (l *componentLogger) Debug(format string, args ...any) {
	l.sink.write(LevelDebug, l.component, format, args...)
}

func (l *componentLogger) Info(format string, args ...any) {
	l.sink.write(LevelInfo, l.component, format, args...)
}

func (l *componentLogger) Warn(format string, args ...any) {
	l.sink.write(LevelWarn, l.component, format, args...)
}

func (l *componentLogger) Error(format string, args ...any) {
	l.sink.write(LevelError, l.component, format, args...)
}
