package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LevelCritical sits above slog.LevelError and is rendered as CRITICAL.
const LevelCritical = slog.LevelError + 4

// levelVar is the dynamic log level shared by all handlers.
var levelVar = new(slog.LevelVar)

// Setup initializes the global logger with the given level name.
// Output is JSON on stdout.
func Setup(level string) {
	levelVar.Set(ParseLevel(level))
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: renameCritical,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLevel changes the log level without recreating the logger.
func SetLevel(level string) {
	levelVar.Set(ParseLevel(level))
	slog.Info("Log level changed", "level", level)
}

// Critical logs at the CRITICAL level. Used for the fatal error classes
// right before a non-zero exit.
func Critical(message string, args ...any) {
	slog.Log(context.Background(), LevelCritical, message, args...)
}

// ParseLevel maps a configured level name onto a slog level.
// Unknown names fall back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "CRITICAL":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// renameCritical rewrites the level attribute for records at or above
// LevelCritical, which slog would otherwise print as "ERROR+4".
func renameCritical(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelCritical {
			a.Value = slog.StringValue("CRITICAL")
		}
	}
	return a
}
