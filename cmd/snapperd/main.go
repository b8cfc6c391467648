// Command snapperd is a minimal host demonstrating the snapper kernel:
// it wires the Registry, Lifecycle Driver, Hook Router, Message Bus, and
// State Store together, discovers SnApps from disk, and drives them
// through a full lifecycle.
//
// Grounded on the teacher's cmd/main.go bootstrap order (init logging ->
// init storage -> init runtime -> start -> graceful shutdown on
// SIGINT/SIGTERM), trimmed to drop every piece with no analog in this
// kernel's scope (DB, TLS, gin router, k8s client, quota service).
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/PhilosopherRex/snapper/internal/bus"
	"github.com/PhilosopherRex/snapper/internal/facade"
	"github.com/PhilosopherRex/snapper/internal/hooks"
	"github.com/PhilosopherRex/snapper/internal/lifecycle"
	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/registry"
	"github.com/PhilosopherRex/snapper/internal/state"
)

func main() {
	logLevel := getEnv("SNAPPER_LOG_LEVEL", "info")
	logPretty := getEnv("SNAPPER_LOG_PRETTY", "true") == "true"
	builtinPath := getEnv("SNAPPER_BUILTIN_PATH", "./snapps")
	stateBase := getEnv("SNAPPER_STATE_PATH", defaultStateBase())

	logging.Initialize(logLevel, logPretty)
	log := logging.Component("snapperd")
	log.Info().Msg("starting snapper host")

	log.Info().Str("path", stateBase).Msg("initializing state store")
	store := state.New(stateBase, nil)

	log.Info().Str("path", builtinPath).Msg("discovering snapps")
	reg := registry.New()
	result := registry.Discover(builtinPath)
	for _, discErr := range result.Errors {
		log.Warn().Str("dir", discErr.Dir).Err(discErr.Err).Msg("failed to load snapp manifest")
	}
	for _, found := range result.Manifests {
		if _, err := reg.Register(found.Manifest); err != nil {
			log.Warn().Str("dir", found.Dir).Err(err).Msg("failed to register snapp")
			continue
		}
		log.Info().Str("snapp", found.Manifest.ID).Msg("registered snapp")
	}

	router := hooks.New()
	msgBus := bus.New()
	rpc := bus.NewDispatcher(msgBus)
	driver := lifecycle.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, app := range reg.GetAll() {
		activateApp(ctx, app, driver, router, msgBus, rpc, store)
	}

	active := 0
	for _, app := range reg.GetAll() {
		if app.State() == lifecycle.StateActive {
			active++
		}
	}
	log.Info().Int("active", active).Msg("snapper host ready")
	<-ctx.Done()

	log.Info().Msg("shutting down, suspending active snapps")
	for _, app := range reg.GetAll() {
		if _, err := driver.Suspend(context.Background(), app); err != nil {
			log.Warn().Str("snapp", app.ID()).Err(err).Msg("suspend failed during shutdown")
		}
		if _, err := driver.Unload(context.Background(), app); err != nil {
			log.Warn().Str("snapp", app.ID()).Err(err).Msg("unload failed during shutdown")
		}
	}
	log.Info().Msg("snapper host stopped")
}

// activateApp drives a freshly registered app through load -> activate,
// constructing its Façade from the granted permissions in its manifest.
// A factory/loader failure is logged, not fatal — one misbehaving app
// must not prevent the host from serving the rest (spec §5).
func activateApp(
	ctx context.Context,
	app *registry.App,
	driver *lifecycle.Driver,
	router *hooks.Router,
	msgBus *bus.Bus,
	rpc *bus.Dispatcher,
	store *state.Store,
) {
	id := app.ID()
	if err := driver.Load(ctx, app, nil); err != nil {
		logging.Component("snapperd").Error().Str("snapp", id).Err(err).Msg("load failed")
		return
	}

	err := driver.Activate(ctx, app, func(ctx context.Context) (*lifecycle.Instance, error) {
		f := facade.New(facade.Config{
			AppID:            id,
			Manifest:         app.Manifest,
			Permissions:      app.Manifest.Permissions,
			Store:            store,
			Router:           router,
			Bus:              msgBus,
			RPC:              rpc,
			WorkingDirectory: filepath.Join(".", "snapps", id),
		})
		return &lifecycle.Instance{
			Value:   f,
			Dispose: func() error { f.Dispose(); return nil },
		}, nil
	})
	if err != nil {
		logging.Component("snapperd").Error().Str("snapp", id).Err(err).Msg("activate failed")
		return
	}
	logging.Component("snapperd").Info().Str("snapp", id).Msg("snapp active")
}

func defaultStateBase() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".openclaw", "snapper-state")
	}
	return filepath.Join(home, ".openclaw", "snapper-state")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
