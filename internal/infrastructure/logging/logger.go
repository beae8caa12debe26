package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
)

// ServiceName is attached to every entry as the "service" field.
const ServiceName = "graylogic-runtime"

// Logger is a slog.Logger carrying the runtime's default fields.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of runtime.yaml. Entries go
// to stderr when cfg.Output says so and to stdout otherwise.
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	}))}
}

// parseLevel maps debug, warn (or warning) and error to their slog level.
// Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Subsystem returns a logger whose entries are tagged with the part of the
// runtime that wrote them, for example "store" or "rpc".
func (l *Logger) Subsystem(name string) *Logger {
	return l.With("subsystem", name)
}

// Default is the logger used until runtime.yaml has been read: JSON at
// info level on stdout.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}
