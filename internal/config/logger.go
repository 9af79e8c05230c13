package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

func InitLogger() {
	Logger = NewLogger(os.Stdout, os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	slog.SetDefault(Logger)

	slog.Info("Logger initialized successfully")
}

// NewLogger builds the JSON logger. Outside production it adds source
// locations and prints local wall-clock time.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if env != "production" {
		opts.AddSource = true
		opts.ReplaceAttr = replaceTimeAttr
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

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

func replaceTimeAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String("time", a.Value.Time().Local().Format("2006-01-02 15:04:05"))
	}
	return a
}
