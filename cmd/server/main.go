// Package main is the entry point for the devpulse API server.
//
// main stays minimal: load configuration, build the logger, hand both to
// internal/server. All behaviour lives in the internal packages.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/devpulse/internal/config"
	"github.com/sakif/devpulse/internal/server"
)

func main() {
	// Config comes first: it decides the log level. Until then, log at Info
	// to stderr so a broken environment is still reported.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if !cfg.CookieSecure {
		logger.Log(context.Background(), insecureCookieLevel(cfg),
			"COOKIE_SECURE is false; session cookies will be sent over plain HTTP",
			slog.String("environment", cfg.Environment),
		)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// insecureCookieLevel is Error in production, where plain-HTTP session
// cookies are a misconfiguration, and Warn elsewhere.
func insecureCookieLevel(cfg *config.Config) slog.Level {
	if cfg.IsProduction() {
		return slog.LevelError
	}
	return slog.LevelWarn
}
