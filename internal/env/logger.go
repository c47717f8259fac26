package environment

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"reseller-panel/internal/config"
)

const appName = "reseller-panel"

// Ключи, значения которых не должны попадать в логи.
var secretKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"authorization": {},
}

func initLogger(cfg config.Config) (*slog.Logger, error) {
	return newLogger(os.Stdout, cfg), nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(cfg.Logger.Level),
		AddSource:   cfg.Logger.AddSource,
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("app", appName, "env", cfg.Env)
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "***")
	}
	return a
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
