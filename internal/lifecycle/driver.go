package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/PhilosopherRex/snapper/internal/apperr"
	"github.com/PhilosopherRex/snapper/internal/logging"
)

// appHandle is the subset of registry.App the driver needs to mutate.
// Defined as an interface here (rather than importing internal/registry
// directly) to keep lifecycle free of a dependency on registry, matching
// the teacher's layering where state-machine logic never imports the
// catalog that owns it. The Unsafe-suffixed methods require the caller
// to already hold the handle's lock; App exports them for the driver's
// benefit but ordinary callers should use its locking accessors instead.
type appHandle interface {
	ID() string
	Lock()
	Unlock()
	StateUnsafe() State
	SetStateUnsafe(State, time.Time)
	SetInstanceUnsafe(*Instance)
	InstanceUnsafe() *Instance
	SetLastErrorUnsafe(error)
	AppendHistoryUnsafe(Transition)
}

// Loader is the optional callback load() awaits before moving an app to
// "loaded". A nil loader is a no-op (spec §4.2).
type Loader func(ctx context.Context) error

// Factory produces the live instance activate() stores on the app.
type Factory func(ctx context.Context) (*Instance, error)

// Driver drives registered apps through the state machine in spec §4.2.
// It holds no app state itself — all state lives on the App the Registry
// owns — so Driver is safe to share across goroutines and across many
// apps.
//
// Grounded on the teacher's plugin lifecycle manager (streamspace
// internal/plugins/lifecycle.go), which drives an analogous
// load/start/stop state machine with the same "precondition check, swap
// state, run callback, swap state again, on error revert to an error
// state" shape.
type Driver struct{}

// New creates a Driver.
func New() *Driver {
	return &Driver{}
}

func transitionError(op string, from State) error {
	return apperr.PreconditionViolated(op, string(from))
}

// Load runs the registered -> loading -> loaded transition, awaiting
// loader if non-nil. Precondition: state == registered.
func (d *Driver) Load(ctx context.Context, app appHandle, loader Loader) error {
	app.Lock()
	if app.StateUnsafe() != StateRegistered {
		st := app.StateUnsafe()
		app.Unlock()
		return transitionError("load", st)
	}
	d.move(app, StateRegistered, StateLoading, nil)
	app.Unlock()

	var err error
	if loader != nil {
		err = loader(ctx)
	}

	app.Lock()
	defer app.Unlock()
	if err != nil {
		d.move(app, StateLoading, StateError, err)
		app.SetLastErrorUnsafe(err)
		logging.Component("lifecycle").Error().Str("snapp", app.ID()).Err(err).Msg("load failed")
		return err
	}
	d.move(app, StateLoading, StateLoaded, nil)
	return nil
}

// Activate runs the {loaded,suspended} -> activating -> active
// transition, obtaining an instance from factory and calling its
// OnActivate hook if present.
func (d *Driver) Activate(ctx context.Context, app appHandle, factory Factory) error {
	app.Lock()
	cur := app.StateUnsafe()
	if cur != StateLoaded && cur != StateSuspended {
		app.Unlock()
		return transitionError("activate", cur)
	}
	d.move(app, cur, StateActivating, nil)
	app.Unlock()

	inst, err := factory(ctx)
	wrap := apperr.FactoryFailure
	if err == nil && inst != nil {
		if onActivate, ok := inst.Value.(interface{ OnActivate(context.Context) error }); ok {
			err = onActivate.OnActivate(ctx)
			wrap = func(cause error) *apperr.AppError { return apperr.CallbackFailure("onActivate", cause) }
		}
	}

	app.Lock()
	defer app.Unlock()
	if err != nil {
		d.move(app, StateActivating, StateError, err)
		app.SetLastErrorUnsafe(err)
		logging.Component("lifecycle").Error().Str("snapp", app.ID()).Err(err).Msg("activate failed")
		return wrap(err)
	}
	app.SetInstanceUnsafe(inst)
	d.move(app, StateActivating, StateActive, nil)
	return nil
}

// Suspend runs the active -> suspending -> suspended transition. Returns
// false without error and without mutating state if the app is not
// currently active (spec §4.2: a benign no-op, not a PreconditionViolated).
func (d *Driver) Suspend(ctx context.Context, app appHandle) (bool, error) {
	app.Lock()
	if app.StateUnsafe() != StateActive {
		app.Unlock()
		return false, nil
	}
	d.move(app, StateActive, StateSuspending, nil)
	inst := app.InstanceUnsafe()
	app.Unlock()

	var err error
	if inst != nil {
		if onSuspend, ok := inst.Value.(interface{ OnSuspend(context.Context) error }); ok {
			err = onSuspend.OnSuspend(ctx)
		}
	}

	app.Lock()
	defer app.Unlock()
	if err != nil {
		d.move(app, StateSuspending, StateError, err)
		app.SetLastErrorUnsafe(err)
		logging.Component("lifecycle").Error().Str("snapp", app.ID()).Err(err).Msg("suspend failed")
		return false, apperr.CallbackFailure("onSuspend", err)
	}
	d.move(app, StateSuspending, StateSuspended, nil)
	return true, nil
}

// Unload runs the transition to unloading, calls the instance's
// OnDestroy hook if present, clears instance/error state, and returns to
// registered. Returns false without mutating if the app is already
// registered. Unload is the only path out of the error state.
func (d *Driver) Unload(ctx context.Context, app appHandle) (bool, error) {
	app.Lock()
	cur := app.StateUnsafe()
	if cur == StateRegistered {
		app.Unlock()
		return false, nil
	}
	d.move(app, cur, StateUnloading, nil)
	inst := app.InstanceUnsafe()
	app.Unlock()

	var err error
	if inst != nil {
		if onDestroy, ok := inst.Value.(interface{ OnDestroy(context.Context) error }); ok {
			err = onDestroy.OnDestroy(ctx)
		}
		if inst.Dispose != nil {
			if derr := inst.Dispose(); derr != nil {
				logging.Component("lifecycle").Warn().Str("snapp", app.ID()).Err(derr).Msg("dispose failed during unload")
			}
		}
	}

	app.Lock()
	defer app.Unlock()
	if err != nil {
		d.move(app, StateUnloading, StateError, err)
		app.SetLastErrorUnsafe(err)
		logging.Component("lifecycle").Error().Str("snapp", app.ID()).Err(err).Msg("unload onDestroy failed")
		return false, apperr.CallbackFailure("onDestroy", err)
	}
	app.SetInstanceUnsafe(nil)
	app.SetLastErrorUnsafe(nil)
	d.move(app, StateUnloading, StateRegistered, nil)
	return true, nil
}

// move performs an already-validated transition, stamping
// stateChangedAt and appending to the bounded history. Caller must hold
// app's lock.
func (d *Driver) move(app appHandle, from, to State, err error) {
	if !CanTransition(from, to) && from != to {
		panic(fmt.Sprintf("lifecycle: driver attempted unvalidated transition %s -> %s", from, to))
	}
	now := time.Now()
	app.SetStateUnsafe(to, now)
	app.AppendHistoryUnsafe(Transition{From: from, To: to, At: now, Err: err})
}
