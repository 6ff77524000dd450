package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
)

// ConsoleHandler wraps charmbracelet/log to implement slog.Handler for the
// "pretty" format.
type ConsoleHandler struct {
	logger *charmlog.Logger
	writer io.Writer
	opts   ConsoleHandlerOptions
	attrs  []slog.Attr
	groups []string
}

// ConsoleHandlerOptions configures the console handler.
type ConsoleHandlerOptions struct {
	// Level is the minimum level to log.
	Level slog.Leveler
	// NoColor disables colored output.
	NoColor bool
	// TimeFormat is the format for timestamps.
	TimeFormat string
}

// applyStyles applies vibedb styling to a charm logger.
func applyStyles(logger *charmlog.Logger) {
	styles := charmlog.DefaultStyles()

	styles.Levels[charmlog.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Bold(true).
		Foreground(lipgloss.Color("63"))

	styles.Levels[charmlog.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO ").
		Bold(true).
		Foreground(lipgloss.Color("42"))

	styles.Levels[charmlog.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN ").
		Bold(true).
		Foreground(lipgloss.Color("214"))

	styles.Levels[charmlog.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Bold(true).
		Foreground(lipgloss.Color("196"))

	styles.Key = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	styles.Value = lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	styles.Timestamp = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243"))

	logger.SetStyles(styles)
}

// NewConsoleHandler creates a charm-based slog handler.
func NewConsoleHandler(w io.Writer, opts *ConsoleHandlerOptions) *ConsoleHandler {
	if opts == nil {
		opts = &ConsoleHandlerOptions{}
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04:05"
	}

	logger := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      opts.TimeFormat,
		Level:           charmLogLevel(opts.Level.Level()),
	})
	if !opts.NoColor {
		applyStyles(logger)
	}

	return &ConsoleHandler{
		logger: logger,
		writer: w,
		opts:   *opts,
	}
}

// Enabled implements slog.Handler.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	kvs := make([]any, 0, (len(h.attrs)+r.NumAttrs())*2)

	for _, attr := range h.attrs {
		k, v := h.formatAttr(attr)
		if k != "" {
			kvs = append(kvs, k, v)
		}
	}

	r.Attrs(func(a slog.Attr) bool {
		k, v := h.formatAttr(a)
		if k != "" {
			kvs = append(kvs, k, v)
		}
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, kvs...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, kvs...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, kvs...)
	default:
		h.logger.Debug(r.Message, kvs...)
	}

	return nil
}

// formatAttr formats an attr, flattening groups with dot notation.
func (h *ConsoleHandler) formatAttr(attr slog.Attr) (string, any) {
	if attr.Key == "" {
		return "", nil
	}

	key := attr.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}

	if attr.Value.Kind() == slog.KindGroup {
		groupAttrs := attr.Value.Group()
		if len(groupAttrs) == 0 {
			return "", nil
		}
		var parts []string
		for _, ga := range groupAttrs {
			k, v := h.formatAttr(ga)
			if k != "" {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
		}
		return key, strings.Join(parts, " ")
	}

	return key, formatValue(attr.Value)
}

// WithAttrs implements slog.Handler.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	nh.attrs = append(nh.attrs, attrs...)
	return nh
}

// WithGroup implements slog.Handler.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	logger := charmlog.NewWithOptions(h.writer, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      h.opts.TimeFormat,
		Level:           charmLogLevel(h.opts.Level.Level()),
	})
	if !h.opts.NoColor {
		applyStyles(logger)
	}

	return &ConsoleHandler{
		logger: logger,
		writer: h.writer,
		opts:   h.opts,
		attrs:  append([]slog.Attr{}, h.attrs...),
		groups: append([]string{}, h.groups...),
	}
}

// formatValue converts slog.Value to a display value.
func formatValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		val := v.Any()
		if err, ok := val.(error); ok {
			return err.Error()
		}
		return val
	default:
		return v.Any()
	}
}

// charmLogLevel converts slog.Level to charmlog.Level.
func charmLogLevel(level slog.Level) charmlog.Level {
	switch {
	case level >= slog.LevelError:
		return charmlog.ErrorLevel
	case level >= slog.LevelWarn:
		return charmlog.WarnLevel
	case level >= slog.LevelInfo:
		return charmlog.InfoLevel
	default:
		return charmlog.DebugLevel
	}
}
