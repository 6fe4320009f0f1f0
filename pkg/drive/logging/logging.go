// Package logging provides component loggers for the drive client.
// Every package logs through a named component ("store", "client", "local",
// "dropzone", "tui") that writes to a size-rotated file under the XDG state
// directory and, optionally, to stderr.
//
// Basic usage:
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Close()
//
//	logger := logging.Get("store")
//	logger.Info("folder loaded", "parent", "root", "count", 12)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name into a charmbracelet/log level.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "info", "":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// MaxSize is the file size in bytes that triggers rotation.
	MaxSize int64

	// MaxBackups is the number of rotated files kept next to Path.
	MaxBackups int

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel mirrors entries at this level and above to stderr.
	// Empty disables console output. Ignored while a TUI owns the screen.
	ConsoleLevel string

	// TUIMode suppresses console output and keeps recent entries in
	// memory for TUIBuffer.
	TUIMode bool
}

// DefaultLogPath returns $XDG_STATE_HOME/drive/drive.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "drive", "drive.log")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Path:       DefaultLogPath(),
		MaxSize:    defaultMaxSize,
		MaxBackups: defaultMaxBackups,
	}
}

// Logger is a component logger.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
	buffer    *Buffer
	fields    []interface{}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.file.Debug(msg, keyvals...)
	l.record(log.DebugLevel, msg, keyvals)
	if l.console != nil {
		l.console.Debug(msg, keyvals...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.file.Info(msg, keyvals...)
	l.record(log.InfoLevel, msg, keyvals)
	if l.console != nil {
		l.console.Info(msg, keyvals...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.file.Warn(msg, keyvals...)
	l.record(log.WarnLevel, msg, keyvals)
	if l.console != nil {
		l.console.Warn(msg, keyvals...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.file.Error(msg, keyvals...)
	l.record(log.ErrorLevel, msg, keyvals)
	if l.console != nil {
		l.console.Error(msg, keyvals...)
	}
}

// With returns a logger that adds keyvals to every entry.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	child := &Logger{
		file:      l.file.With(keyvals...),
		component: l.component,
		buffer:    l.buffer,
		fields:    append(append([]interface{}{}, l.fields...), keyvals...),
	}
	if l.console != nil {
		child.console = l.console.With(keyvals...)
	}
	return child
}

// record keeps an entry for the TUI when a buffer is attached.
func (l *Logger) record(level log.Level, msg string, keyvals []interface{}) {
	if l.buffer == nil || level < l.file.GetLevel() {
		return
	}
	fields := keyvals
	if len(l.fields) > 0 {
		fields = append(append([]interface{}{}, l.fields...), keyvals...)
	}
	l.buffer.Add(Entry{
		Time:      time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    formatFields(fields),
	})
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       log.Level
	components  map[string]log.Level
	console     bool
	consoleLvl  log.Level
	buffer      *Buffer
	loggers     map[string]*Logger
}

var global = &state{
	level:      log.InfoLevel,
	components: make(map[string]log.Level),
	loggers:    make(map[string]*Logger),
}

// Init initializes the logging system. Loggers obtained before Init are
// rebuilt in place. Before Init, all output goes to io.Discard.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]log.Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	var consoleLvl log.Level
	console := cfg.ConsoleLevel != "" && !cfg.TUIMode
	if console {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.MaxSize, cfg.MaxBackups)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}
	global.writer = writer
	global.level = level
	global.components = components
	global.console = console
	global.consoleLvl = consoleLvl
	global.buffer = nil
	if cfg.TUIMode {
		global.buffer = NewBuffer(DefaultBufferSize)
	}
	global.initialized = true

	for name, logger := range global.loggers {
		*logger = *newLogger(name)
	}
	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *Logger {
	global.mu.RLock()
	logger, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return logger
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if logger, ok := global.loggers[component]; ok {
		return logger
	}
	logger = newLogger(component)
	global.loggers[component] = logger
	return logger
}

// newLogger builds a component logger. Must be called with global.mu held.
func newLogger(component string) *Logger {
	level := global.level
	if lvl, ok := global.components[component]; ok {
		level = lvl
	}

	var out io.Writer = io.Discard
	if global.initialized {
		out = global.writer
	}

	logger := &Logger{
		file: log.NewWithOptions(out, log.Options{
			Level:           level,
			ReportTimestamp: global.initialized,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
		buffer:    global.buffer,
	}

	if global.initialized && global.console {
		logger.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           global.consoleLvl,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return logger
}

// TUIBuffer returns the in-memory entry buffer, or nil outside TUI mode.
func TUIBuffer() *Buffer {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.buffer
}

// Close flushes and closes the log file. Existing loggers fall back to io.Discard.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}
	global.initialized = false
	global.buffer = nil

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	for name, logger := range global.loggers {
		*logger = *newLogger(name)
	}
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}
