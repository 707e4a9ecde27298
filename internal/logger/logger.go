// Package logger provides the leveled, structured logger used across pdfTranslator.
// Entries are rendered by a log/slog handler, as text or JSON, into a
// size-rotated log file and, optionally, a console writer.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level orders entries; config files name it by String.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	// LevelWarn marks degraded output the user should see.
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

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ParseLevel maps a level name (case-insensitive) to a Level.
// Unknown names return LevelInfo and false.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO", "":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// Entry formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Field is one structured attribute of an entry.
type Field = slog.Attr

func String(key, value string) Field         { return slog.String(key, value) }
func Int(key string, value int) Field         { return slog.Int(key, value) }
func Int64(key string, value int64) Field     { return slog.Int64(key, value) }
func Float64(key string, value float64) Field { return slog.Float64(key, value) }
func Bool(key string, value bool) Field       { return slog.Bool(key, value) }
func Any(key string, value any) Field         { return slog.Any(key, value) }

// Duration is rendered as text ("1.5s") in both formats.
func Duration(key string, value time.Duration) Field {
	return slog.String(key, value.String())
}

// Err keys err under "error"; a nil error gives a nil value.
func Err(err error) Field {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

func attrs(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}

// Logger is implemented by DefaultLogger and the no-op logger returned
// before Init.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	// Error adds err and the caller's stack to the entry.
	Error(msg string, err error, fields ...Field)
	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger
	SetLevel(level Level)
	Close() error
}

// Config selects where entries go and how they look.
type Config struct {
	// LogFilePath empty disables file output.
	LogFilePath string
	// MaxFileSize in bytes; the file rolls over before passing it.
	MaxFileSize int64
	MaxBackups  int
	Level       Level
	// Format is FormatText (default) or FormatJSON
	Format string
	// EnableConsole mirrors entries to Console
	EnableConsole bool
	// Console defaults to os.Stderr; stdout is reserved for command output.
	Console io.Writer
}

// DefaultConfig logs INFO and above as text to pdft.log.
func DefaultConfig() *Config {
	return &Config{
		LogFilePath:   "pdft.log",
		MaxFileSize:   10 * 1024 * 1024, // 10 MB
		MaxBackups:    5,
		Level:         LevelInfo,
		Format:        FormatText,
		EnableConsole: false,
	}
}

// rotatingFile is an append-only log file that rolls over to name.1 ..
// name.N once it would grow past maxSize.
type rotatingFile struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

func openRotatingFile(path string, maxSize int64, maxBackups int) (*rotatingFile, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r := &rotatingFile{path: path, maxSize: maxSize, maxBackups: maxBackups}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return len(p), nil
	}
	if r.maxSize > 0 && r.size+int64(len(p)) > r.maxSize && r.size > 0 {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate shifts pdft.log.N to pdft.log.N+1 and starts a fresh file.
func (r *rotatingFile) rotate() error {
	r.file.Close()
	r.file = nil
	for i := r.maxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", r.path, i), fmt.Sprintf("%s.%d", r.path, i+1))
	}
	os.Rename(r.path, r.path+".1")
	os.Remove(fmt.Sprintf("%s.%d", r.path, r.maxBackups+1))
	return r.open()
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// DefaultLogger writes through a slog handler.
type DefaultLogger struct {
	file  *rotatingFile
	level *slog.LevelVar
	sl    *slog.Logger
}

// NewDefaultLogger opens the log file of config; nil means DefaultConfig.
func NewDefaultLogger(config *Config) (*DefaultLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	l := &DefaultLogger{level: new(slog.LevelVar)}
	l.level.Set(config.Level.slog())

	var writers []io.Writer
	if config.LogFilePath != "" {
		f, err := openRotatingFile(config.LogFilePath, config.MaxFileSize, config.MaxBackups)
		if err != nil {
			return nil, err
		}
		l.file = f
		writers = append(writers, f)
	}
	if config.EnableConsole {
		console := config.Console
		if console == nil {
			console = os.Stderr
		}
		writers = append(writers, console)
	}

	opts := &slog.HandlerOptions{Level: l.level, ReplaceAttr: replaceTime}
	out := io.MultiWriter(writers...)
	var h slog.Handler
	if strings.EqualFold(config.Format, FormatJSON) {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	l.sl = slog.New(h)
	return l, nil
}

// replaceTime writes timestamps with millisecond precision in local time.
func replaceTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05.000"))
	}
	return a
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	l.sl.Debug(msg, attrs(fields)...)
}

func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.sl.Info(msg, attrs(fields)...)
}

func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.sl.Warn(msg, attrs(fields)...)
}

// Error logs an error message with the caller's stack
func (l *DefaultLogger) Error(msg string, err error, fields ...Field) {
	if !l.sl.Enabled(context.Background(), slog.LevelError) {
		return
	}
	args := make([]any, 0, len(fields)+2)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	args = append(args, attrs(fields)...)
	args = append(args, slog.String("stack", stackTrace()))
	l.sl.Error(msg, args...)
}

// With returns a child logger sharing the output and level of l.
func (l *DefaultLogger) With(fields ...Field) Logger {
	return &DefaultLogger{file: l.file, level: l.level, sl: l.sl.With(attrs(fields)...)}
}

func (l *DefaultLogger) SetLevel(level Level) {
	l.level.Set(level.slog())
}

// Close closes the log file. Child loggers share it.
func (l *DefaultLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func stackTrace() string {
	var sb strings.Builder
	// stackTrace, Error, and the package-level Error wrapper when used
	const skip = 2
	for i := skip; i-skip <= 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		name := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		if strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "testing.") ||
			strings.HasSuffix(name, "/logger.Error") {
			continue
		}
		fmt.Fprintf(&sb, "%s:%d %s; ", filepath.Base(file), line, name)
	}
	return strings.TrimSuffix(sb.String(), "; ")
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Init replaces the global logger, closing the previous one.
func Init(config *Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	logger, err := NewDefaultLogger(config)
	if err != nil {
		return err
	}

	if globalLogger != nil {
		globalLogger.Close()
	}

	globalLogger = logger
	return nil
}

// GetLogger returns the global logger instance, or a no-op logger before Init.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		return noopLogger{}
	}
	return globalLogger
}

// SetGlobalLogger installs logger without closing the old one; tests use it.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// Close closes the global logger and reverts to the no-op logger.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil {
		err := globalLogger.Close()
		globalLogger = nil
		return err
	}
	return nil
}

// Package-level shortcuts for the global logger.

func Debug(msg string, fields ...Field) {
	GetLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, err error, fields ...Field) {
	GetLogger().Error(msg, err, fields...)
}

// With returns a child of the global logger carrying fields.
func With(fields ...Field) Logger {
	return GetLogger().With(fields...)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...Field)            {}
func (noopLogger) Info(msg string, fields ...Field)             {}
func (noopLogger) Warn(msg string, fields ...Field)             {}
func (noopLogger) Error(msg string, err error, fields ...Field) {}
func (n noopLogger) With(fields ...Field) Logger                { return n }
func (noopLogger) SetLevel(level Level)                         {}
func (noopLogger) Close() error                                 { return nil }
