package util

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a text logger in development and a JSON logger elsewhere.
// level accepts debug, info, warn or error; empty picks debug in development
// and info otherwise.
func NewLogger(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(env, level)}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		opts.AddSource = true
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", "agentops", "env", env)
}

func parseLevel(env, level string) slog.Level {
	var l slog.Level
	if level != "" && l.UnmarshalText([]byte(strings.ToUpper(level))) == nil {
		return l
	}
	if env == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
