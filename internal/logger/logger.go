// Package logger configures slog output for the server: JSON in
// production, a colored single-line console format everywhere else.
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
	"time"
)

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Writer      io.Writer
	Format      string
	Environment string
	Level       slog.Level
	AddSource   bool
}

// New creates a logger. Format "json" selects the machine-readable
// handler; "pretty" (the default outside production) selects the
// console handler.
func New(cfg Config) *Logger {
	out := cfg.Writer
	if out == nil {
		out = os.Stdout
	}

	format := cfg.Format
	if format == "" {
		format = "pretty"
		if cfg.Environment == "production" {
			format = "json"
		}
	}

	if format == "json" {
		opts := &slog.HandlerOptions{
			Level:     cfg.Level,
			AddSource: cfg.AddSource,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.SourceKey {
					if src, ok := a.Value.Any().(*slog.Source); ok {
						src.File = filepath.Base(src.File)
					}
				}
				return a
			},
		}
		return &Logger{Logger: slog.New(slog.NewJSONHandler(out, opts))}
	}

	return &Logger{Logger: slog.New(&consoleHandler{
		out:        out,
		level:      cfg.Level,
		withSource: cfg.AddSource,
	})}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	}
	return slog.LevelInfo
}

// consoleHandler renders records as "HH:MM:SS LEVEL message k=v k=v".
// Inherited attrs are preformatted once at With time, groups become
// dotted key prefixes.
type consoleHandler struct {
	out        io.Writer
	level      slog.Level
	withSource bool
	inherited  string
	prefix     string
}

const (
	ansiReset = "\033[0m"
	ansiFaint = "\033[2m"
	ansiAttr  = "\033[36m"
)

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31mERROR" + ansiReset
	case l >= slog.LevelWarn:
		return "\033[33mWARN " + ansiReset
	case l >= slog.LevelInfo:
		return "\033[32mINFO " + ansiReset
	default:
		return "\033[35mDEBUG" + ansiReset
	}
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.Grow(160)

	fmt.Fprintf(&sb, "%s%s%s %s ",
		ansiFaint, r.Time.Format("15:04:05"), ansiReset, levelTag(r.Level))

	if h.withSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		fmt.Fprintf(&sb, "%s%s:%d%s ",
			ansiFaint, filepath.Base(frame.File), frame.Line, ansiReset)
	}

	sb.WriteString("\033[1m")
	sb.WriteString(r.Message)
	sb.WriteString(ansiReset)
	sb.WriteString(h.inherited)

	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.prefix, a)
		return true
	})

	sb.WriteByte('\n')
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	sb.WriteString(h.inherited)
	for _, a := range attrs {
		writeAttr(&sb, h.prefix, a)
	}

	next := *h
	next.inherited = sb.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			writeAttr(sb, prefix+a.Key+".", member)
		}
		return
	}

	sb.WriteByte(' ')
	sb.WriteString(ansiAttr)
	sb.WriteString(prefix)
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	sb.WriteString(renderValue(a.Value))
	sb.WriteString(ansiReset)
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	}
	return v.String()
}
