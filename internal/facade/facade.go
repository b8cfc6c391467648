// Package facade implements the API Façade (spec §4.6): the per-app
// capability-gated surface constructed for every activated SnApp.
package facade

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/PhilosopherRex/snapper/internal/apperr"
	"github.com/PhilosopherRex/snapper/internal/bus"
	"github.com/PhilosopherRex/snapper/internal/hooks"
	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/manifest"
	"github.com/PhilosopherRex/snapper/internal/state"
)

// VersionInfo is the result of GetVersion.
type VersionInfo struct {
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
}

const apiVersion = "1.0.0"

// Facade is the per-app surface handed to a SnApp's factory. It is
// constructed once at activation time and disposed once at unload.
//
// Grounded on the teacher's PluginContext (streamspace
// internal/plugins/runtime.go), which stitches together
// Database/Events/API/UI/Storage/Logger/Scheduler into one struct handed
// to each plugin; here the analogous stitching is State Store/Hook
// Router/Message Bus/logger, scoped by granted permissions.
type Facade struct {
	appID            string
	manifest         *manifest.Manifest
	permissions      map[manifest.Permission]bool
	workingDirectory string

	store   *state.Store
	router  *hooks.Router
	msgBus  *bus.Bus
	rpc     *bus.Dispatcher
	log     zerolog.Logger

	mu           sync.Mutex
	disposed     bool
	unsubscribes []func()

	tabs     *tabRegistry
	panels   *panelRegistry
	commands *commandRegistry

	showToast func(ToastOptions)
	injectPromptContext func(text string, priority int)
}

// Config is the constructor tuple per spec §4.6.
type Config struct {
	AppID            string
	Manifest         *manifest.Manifest
	Permissions      []manifest.Permission
	Store            *state.Store
	Router           *hooks.Router
	Bus              *bus.Bus
	RPC              *bus.Dispatcher
	WorkingDirectory string

	// ShowToast and InjectPromptContext are host-supplied forwarding
	// functions; the core's only responsibility for these is permission
	// enforcement (spec §4.6).
	ShowToast           func(ToastOptions)
	InjectPromptContext func(text string, priority int)
}

// New constructs a Facade for an activating app.
func New(cfg Config) *Facade {
	perms := make(map[manifest.Permission]bool, len(cfg.Permissions))
	for _, p := range cfg.Permissions {
		perms[p] = true
	}

	f := &Facade{
		appID:               cfg.AppID,
		manifest:            cfg.Manifest,
		permissions:         perms,
		workingDirectory:    cfg.WorkingDirectory,
		store:               cfg.Store,
		router:              cfg.Router,
		msgBus:              cfg.Bus,
		rpc:                 cfg.RPC,
		log:                 logging.ForApp(cfg.AppID, ""),
		showToast:           cfg.ShowToast,
		injectPromptContext: cfg.InjectPromptContext,
	}
	f.tabs = newTabRegistry(cfg.AppID)
	f.panels = newPanelRegistry(cfg.AppID)
	f.commands = newCommandRegistry(cfg.AppID)
	return f
}

// ID returns the app's id.
func (f *Facade) ID() string { return f.appID }

// Manifest returns the app's manifest.
func (f *Facade) Manifest() *manifest.Manifest { return f.manifest }

// GetVersion returns the app's declared version alongside the façade's
// API version.
func (f *Facade) GetVersion() VersionInfo {
	return VersionInfo{Version: f.manifest.Version, APIVersion: apiVersion}
}

// Logger returns a child logger prefixed with the app id and an
// optional extra prefix (spec §4.6 Identity).
func (f *Facade) Logger(prefix string) zerolog.Logger {
	return logging.ForApp(f.appID, prefix)
}

// GetWorkingDirectory returns the directory this façade is bound to.
func (f *Facade) GetWorkingDirectory() string {
	return f.workingDirectory
}

// HasPermission reports whether the app was granted tag.
func (f *Facade) HasPermission(tag manifest.Permission) bool {
	return f.permissions[tag]
}

// requirePermission raises PermissionDenied(tag) if tag was not granted.
func (f *Facade) requirePermission(tag manifest.Permission) error {
	if !f.permissions[tag] {
		return apperr.PermissionDenied(string(tag))
	}
	return nil
}

// track registers a disposable closure run during Dispose.
func (f *Facade) track(undo func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, undo)
}

// Dispose clears all tabs, panels, commands, tab/panel event callbacks,
// and registered disposables. Idempotent.
func (f *Facade) Dispose() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.disposed = true
	undos := f.unsubscribes
	f.unsubscribes = nil
	f.mu.Unlock()

	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}

	f.tabs.clear()
	f.panels.clear()
	f.commands.clear()
	f.log.Info().Msg("facade disposed")
}
