// Package registry discovers SnApp manifests on disk, validates them, and
// holds the insertion-ordered catalog of registered apps (spec §4.1).
package registry

import (
	"sync"
	"time"

	"github.com/PhilosopherRex/snapper/internal/apperr"
	"github.com/PhilosopherRex/snapper/internal/lifecycle"
	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

// App is a Registered App tuple (spec §3): the manifest the Registry owns,
// plus the lifecycle state the Lifecycle Driver owns. App is shared
// between the two components, so all field mutation after registration
// flows exclusively through the Lifecycle Driver (internal/lifecycle).
type App struct {
	Manifest *manifest.Manifest

	mu             sync.Mutex
	state          lifecycle.State
	instance       *lifecycle.Instance
	lastError      error
	registeredAt   time.Time
	stateChangedAt time.Time
	history        []lifecycle.Transition
}

// ID returns the app's manifest id, for convenience.
func (a *App) ID() string { return a.Manifest.ID }

// State returns the app's current lifecycle state.
func (a *App) State() lifecycle.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Instance returns the app's live instance, or nil if not activated.
func (a *App) Instance() *lifecycle.Instance {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}

// LastError returns the error recorded the last time the app entered the
// error state, or nil.
func (a *App) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

// RegisteredAt returns when the app was registered.
func (a *App) RegisteredAt() time.Time { return a.registeredAt }

// StateChangedAt returns the timestamp of the most recent state transition.
func (a *App) StateChangedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateChangedAt
}

// History returns a copy of the app's bounded lifecycle transition log
// (SPEC_FULL addition, see SPEC_FULL.md "Supplemented Features" #3).
func (a *App) History() []lifecycle.Transition {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]lifecycle.Transition, len(a.history))
	copy(out, a.history)
	return out
}

// maxHistory bounds the transition log kept per app.
const maxHistory = 50

// The methods below give internal/lifecycle.Driver exclusive, already-
// locked access to App's mutable fields. They satisfy lifecycle's
// appHandle interface structurally; callers outside the driver should
// use the locking accessors above instead.

// Lock acquires the app's state mutex. Must be paired with Unlock.
func (a *App) Lock() { a.mu.Lock() }

// Unlock releases the app's state mutex.
func (a *App) Unlock() { a.mu.Unlock() }

// StateUnsafe returns the current state without locking. Caller must
// hold the lock (see Lock).
func (a *App) StateUnsafe() lifecycle.State { return a.state }

// SetStateUnsafe sets the current state and its timestamp. Caller must
// hold the lock.
func (a *App) SetStateUnsafe(s lifecycle.State, at time.Time) {
	a.state = s
	a.stateChangedAt = at
}

// SetInstanceUnsafe replaces the app's live instance. Caller must hold
// the lock.
func (a *App) SetInstanceUnsafe(i *lifecycle.Instance) { a.instance = i }

// InstanceUnsafe returns the app's live instance without locking. Caller
// must hold the lock.
func (a *App) InstanceUnsafe() *lifecycle.Instance { return a.instance }

// SetLastErrorUnsafe records the error from the most recent failed
// transition. Caller must hold the lock.
func (a *App) SetLastErrorUnsafe(err error) { a.lastError = err }

// AppendHistoryUnsafe appends a transition record, discarding the oldest
// entry once maxHistory is exceeded. Caller must hold the lock.
func (a *App) AppendHistoryUnsafe(t lifecycle.Transition) {
	a.history = append(a.history, t)
	if len(a.history) > maxHistory {
		a.history = a.history[len(a.history)-maxHistory:]
	}
}

// Registry holds the insertion-ordered catalog of registered apps.
//
// Grounded on the teacher's global plugin registry (streamspace
// internal/plugins/registry.go) and its discovery flow
// (internal/plugins/discovery.go): a single RWMutex-guarded map plus an
// explicit order slice, because Go maps don't preserve insertion order
// and spec §4.1 requires it for getAll/count iteration.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*App
	order []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byID: make(map[string]*App),
	}
}

// Register inserts a new App for manifest m with state "registered".
// Fails with DuplicateID if m.ID is already catalogued. Register does not
// validate m: it checks nothing beyond id uniqueness, so a manifest that
// internal/manifest.Parse would reject is still accepted here.
func (r *Registry) Register(m *manifest.Manifest) (*App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID]; exists {
		return nil, apperr.DuplicateID(m.ID)
	}

	now := time.Now()
	app := &App{
		Manifest:       m,
		state:          lifecycle.StateRegistered,
		registeredAt:   now,
		stateChangedAt: now,
	}
	r.byID[m.ID] = app
	r.order = append(r.order, m.ID)
	logging.Component("registry").Info().Str("snapp", m.ID).Msg("app registered")
	return app, nil
}

// Get returns the app with the given id, or (nil, false).
func (r *Registry) Get(id string) (*App, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// GetAll returns every registered app in registration order.
func (r *Registry) GetAll() []*App {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*App, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Count returns the number of registered apps.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Unregister removes the app with the given id. Returns false if it was
// not registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every registered app.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*App)
	r.order = nil
}
