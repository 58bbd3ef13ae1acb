package logger

import (
	"log/slog"
	"os"
)

// NewLogger creates a structured JSON logger scoped to a service. The log
// level comes from LOG_LEVEL (default INFO).
func NewLogger(serviceName string) *slog.Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	// Every entry carries the service name
	return slog.New(handler).With(slog.String("service", serviceName))
}

func getLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
