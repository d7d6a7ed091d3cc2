package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

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

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes leveled, structured log lines.
type Logger struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}

// Option attaches a field to a single log entry.
type Option func(map[string]interface{})

func WithField(key string, value interface{}) Option {
	return func(fields map[string]interface{}) {
		fields[key] = value
	}
}

func WithFields(extra map[string]interface{}) Option {
	return func(fields map[string]interface{}) {
		for k, v := range extra {
			fields[k] = v
		}
	}
}

func New(level Level) *Logger {
	return &Logger{level: level, out: os.Stderr}
}

// NewWithOutput creates a logger writing to a custom destination.
func NewWithOutput(level Level, out io.Writer) *Logger {
	return &Logger{level: level, out: out}
}

func (l *Logger) Debug(msg string, opts ...Option) { l.log(LevelDebug, msg, opts...) }
func (l *Logger) Info(msg string, opts ...Option)  { l.log(LevelInfo, msg, opts...) }
func (l *Logger) Warn(msg string, opts ...Option)  { l.log(LevelWarn, msg, opts...) }
func (l *Logger) Error(msg string, opts ...Option) { l.log(LevelError, msg, opts...) }

func (l *Logger) log(level Level, msg string, opts ...Option) {
	if level < l.level {
		return
	}

	fields := make(map[string]interface{})
	for _, opt := range opts {
		opt(fields)
	}

	var b strings.Builder
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)

	// Deterministic field order keeps log output diffable.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, b.String())
}
