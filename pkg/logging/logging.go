// Package logging provides the structured logger shared by every catalyst
// component. Most packages log through the slog.Logger returned by New; the
// sandbox package is the deliberate exception and uses zap (see NewZap).
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a structured logger tagged with the given service/component
// name. format is "json" (default) or "plain" for a human-readable handler.
func New(service, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "plain") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(slog.String("service", service))
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
