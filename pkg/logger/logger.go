// Package logger configures slog for the migrator and hands out the named
// per-record-type loggers that the migration handlers write to.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Logger names shared by the migration handlers.
const (
	CLI          = "migrator"
	Vocabularies = "vocabularies_logger"
	Relations    = "relations_logger"
	Loans        = "loans_logger"
	EItems       = "eitems_logger"
)

func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func WithLegacyID(ctx context.Context, legacyID string) context.Context {
	return context.WithValue(ctx, contextKey{}, legacyID)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if legacyID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("legacy_recid", legacyID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// Named returns the logger identified by name, e.g. "documents_logger".
func Named(name string) *slog.Logger {
	return NamedFrom(slog.Default(), name)
}

// NamedFrom is Named on top of base instead of the default logger.
func NamedFrom(base *slog.Logger, name string) *slog.Logger {
	return base.With("logger", name)
}

// ForRecordType returns the logger of a record type: "document" logs to
// "documents_logger".
func ForRecordType(rectype string) *slog.Logger {
	return Named(RecordLoggerName(rectype))
}

// RecordLoggerName is the logger name of a record type. An empty record
// type means document.
func RecordLoggerName(rectype string) string {
	if rectype == "" {
		rectype = "document"
	}
	return rectype + "s_logger"
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
