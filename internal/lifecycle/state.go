// Package lifecycle drives a registered SnApp through its state machine
// (spec §4.2): registered -> loading -> loaded -> activating -> active ->
// suspending -> suspended, with unload reachable from most states and
// error reachable from any operation's failure.
package lifecycle

import "time"

// State is one of the fixed SnApp lifecycle states (spec §3 "Lifecycle
// State").
type State string

const (
	StateRegistered  State = "registered"
	StateLoading     State = "loading"
	StateLoaded      State = "loaded"
	StateActivating  State = "activating"
	StateActive      State = "active"
	StateSuspending  State = "suspending"
	StateSuspended   State = "suspended"
	StateUnloading   State = "unloading"
	StateError       State = "error"
)

// transitions is the valid-transition table from spec §4.2. Driver
// operations check their own start state and report a violation as
// PreconditionViolated(operation, state); Driver.move panics if asked to
// make a (from, to) move not present here.
var transitions = map[State]map[State]bool{
	StateRegistered: {StateLoading: true},
	StateLoading:    {StateLoaded: true, StateError: true},
	StateLoaded:     {StateActivating: true, StateUnloading: true},
	StateActivating: {StateActive: true, StateError: true},
	StateActive:     {StateSuspending: true, StateUnloading: true},
	StateSuspending: {StateSuspended: true, StateError: true},
	StateSuspended:  {StateActivating: true, StateUnloading: true},
	StateUnloading:  {StateRegistered: true, StateError: true},
	StateError:      {StateUnloading: true},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

// Transition records one historical state change, used by the bounded
// per-app history (SPEC_FULL addition, see SPEC_FULL.md "Supplemented
// Features").
type Transition struct {
	From State
	To   State
	At   time.Time
	// Err is set when the transition was into StateError.
	Err error
}

// Instance is the live handle to an activated SnApp: whatever the
// app's factory produced, plus the disposer it returned (spec §4.2,
// "activate" operation). The driver calls Value's OnActivate, OnSuspend
// and OnDestroy methods when Value implements them, and calls Dispose
// during unload; it inspects nothing else.
type Instance struct {
	// Value is the object the app's entry-point factory returned.
	Value interface{}
	// Dispose releases any resources the instance holds. Unload calls it
	// after OnDestroy, and its error (if any) is logged, not
	// propagated (spec §4.2 unload semantics: best-effort cleanup).
	Dispose func() error
}
