// Package logging wires the kernel's global structured logger and hands out
// per-app child loggers for the API façade.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global logger instance, configured by Initialize.
var Log zerolog.Logger

// Initialize sets up the global logger. pretty selects a human-readable
// console writer (development); otherwise output is newline-delimited JSON.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "snapper").Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

// ForApp returns a child logger scoped to a single SnApp, optionally with a
// further child prefix (e.g. a subsystem name the app itself chose). Every
// line it emits carries the app id, matching the façade's documented
// "prefixes every line with the app id and an optional child prefix".
func ForApp(appID, prefix string) zerolog.Logger {
	ctx := Log.With().Str("component", "snapp").Str("snapp", appID)
	if prefix != "" {
		ctx = ctx.Str("prefix", prefix)
	}
	return ctx.Logger()
}

// Component returns a child logger scoped to one of the kernel's own
// services (registry, lifecycle, hooks, bus, state) for ambient logging
// that isn't attributable to a single app.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
