// Package logger provides structured logging for vibedb using log/slog.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"vibedb/internal/config"
)

// Logger wraps slog.Logger with level control and file-handle ownership.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// New creates a Logger from the given configuration.
func New(cfg config.LogConfig) (*Logger, error) {
	writer, closer, err := buildWriters(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build log writers: %w", err)
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	opts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: cfg.EnableCaller,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "pretty":
		handler = NewConsoleHandler(writer, &ConsoleHandlerOptions{
			Level:   levelVar,
			NoColor: cfg.NoColor,
		})
	default: // "text"
		handler = slog.NewTextHandler(writer, opts)
	}

	if len(cfg.RedactFields) > 0 {
		handler = NewRedactingHandler(handler, cfg.RedactFields)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  levelVar,
		closer: closer,
	}, nil
}

// SetLevel changes the minimum level at runtime. Used by the config
// watcher.
func (l *Logger) SetLevel(level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(parsed)
	return nil
}

// Close closes any open file handles.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(attrs ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(attrs...),
		level:  l.level,
		closer: nil, // closer ownership stays with the root logger
	}
}

// buildWriters creates the output writer(s) from configuration.
func buildWriters(cfg config.LogConfig) (io.Writer, io.Closer, error) {
	var writers []io.Writer
	var closers []io.Closer

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		writers = append(writers, os.Stdout)
	case "stderr":
		writers = append(writers, os.Stderr)
	case "":
	default:
		lj := newLumberjack(cfg.Output, cfg)
		writers = append(writers, lj)
		closers = append(closers, lj)
	}

	if cfg.FilePath != "" {
		lj := newLumberjack(cfg.FilePath, cfg)
		writers = append(writers, lj)
		closers = append(closers, lj)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var writer io.Writer
	if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = io.MultiWriter(writers...)
	}

	var closer io.Closer
	if len(closers) > 0 {
		closer = &multiCloser{closers: closers}
	}

	return writer, closer, nil
}

// newLumberjack creates a rotating file writer.
func newLumberjack(path string, cfg config.LogConfig) *lumberjack.Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

type multiCloser struct {
	closers []io.Closer
}

func (mc *multiCloser) Close() error {
	var errs []error
	for _, c := range mc.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close %d writers: %v", len(errs), errs)
	}
	return nil
}

// Default returns a logger that writes to stderr at info level.
func Default() *Logger {
	levelVar := new(slog.LevelVar)
	return &Logger{
		Logger: slog.Default(),
		level:  levelVar,
	}
}
