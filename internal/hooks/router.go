// Package hooks implements the Hook Router (spec §4.3): a typed
// event-to-payload dispatcher with priority ordering, filter predicates,
// and per-handler panic/error isolation.
package hooks

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

// Handler receives an event's payload. A non-nil return is recorded and
// logged but never stops dispatch to the remaining handlers.
type Handler func(payload interface{}) error

// Filter decides whether a handler runs for a given payload. A nil
// filter is treated as accept-all.
type Filter func(payload interface{}) bool

// Options configures a single On/Once registration.
type Options struct {
	// Priority orders handlers for the same event; higher runs first.
	// Equal priorities preserve insertion order (stable sort).
	Priority int
	// Filter, if set, gates whether Handler runs for a given payload.
	Filter Filter
	// Async marks the handler as running in its own recovered goroutine
	// rather than directly on the dispatch loop. Emit still awaits its
	// completion before moving on to the next handler in priority order
	// (spec §4.3/§5: handlers run to completion in priority order,
	// sequential, never parallel) — Async only changes the isolation
	// mechanism, not the ordering.
	Async bool
}

type entry struct {
	id       string
	handler  Handler
	priority int
	filter   Filter
	async    bool
	seq      int
}

// Router dispatches the fixed set of host lifecycle events declared in
// manifest.KnownHookEvents to their registered handlers.
//
// Grounded on the teacher's plugin event bus (streamspace
// internal/plugins/event_bus.go): Emit recovers from a handler panic
// exactly the way EventBus.Emit recovers per-subscriber goroutines, here
// collapsed to synchronous dispatch with an explicit Async escape hatch
// per spec §4.3/§5 (the router "is generic over the event→payload
// mapping", not inherently asynchronous).
type Router struct {
	mu       sync.Mutex
	handlers map[manifest.HookEvent][]*entry
	seq      int
}

// New creates an empty Router.
func New() *Router {
	return &Router{handlers: make(map[manifest.HookEvent][]*entry)}
}

// On registers handler for event with the given options, returning an
// unsubscribe closure. Handlers for the same event are kept sorted by
// descending priority, stable for ties.
func (r *Router) On(event manifest.HookEvent, handler Handler, opts Options) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e := &entry{
		id:       uuid.NewString(),
		handler:  handler,
		priority: opts.Priority,
		filter:   opts.Filter,
		async:    opts.Async,
		seq:      r.seq,
	}
	r.handlers[event] = append(r.handlers[event], e)
	r.resort(event)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.removeLocked(event, e.id)
	}
}

// Once registers handler for event, automatically unsubscribing after
// its first invocation (successful or not).
func (r *Router) Once(event manifest.HookEvent, handler Handler, opts Options) func() {
	var unsubscribe func()
	var fired bool
	var mu sync.Mutex

	wrapped := func(payload interface{}) error {
		mu.Lock()
		if fired {
			mu.Unlock()
			return nil
		}
		fired = true
		mu.Unlock()
		defer unsubscribe()
		return handler(payload)
	}

	unsubscribe = r.On(event, wrapped, opts)
	return unsubscribe
}

// Emit invokes every registered handler for event, in current priority
// order, skipping any whose filter rejects payload. Each handler — async
// or not — runs to completion before the next one begins: an Async
// handler is isolated in its own recovered goroutine but Emit waits for
// it before advancing (spec §4.3/§5, "sequential, not parallel"). A
// handler panic or returned error is logged and does not interrupt
// dispatch to the remaining handlers.
func (r *Router) Emit(event manifest.HookEvent, payload interface{}) {
	r.mu.Lock()
	snapshot := make([]*entry, len(r.handlers[event]))
	copy(snapshot, r.handlers[event])
	r.mu.Unlock()

	for _, e := range snapshot {
		if e.filter != nil && !e.filter(payload) {
			continue
		}
		if e.async {
			var wg sync.WaitGroup
			wg.Add(1)
			go func(e *entry) {
				defer wg.Done()
				invoke(e, payload)
			}(e)
			wg.Wait()
			continue
		}
		invoke(e, payload)
	}
}

// invoke runs a single handler, isolating both panics and returned
// errors so one bad subscriber never blocks the rest of Emit's loop
// (spec §4.3).
func invoke(e *entry, payload interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Component("hooks").Error().
				Interface("recovered", rec).
				Str("handlerId", e.id).
				Msg("hook handler panicked")
		}
	}()
	if err := e.handler(payload); err != nil {
		logging.Component("hooks").Error().Err(err).Str("handlerId", e.id).Msg("hook handler returned error")
	}
}

// Clear removes handlers for event, or every handler for every event if
// event is the empty string.
func (r *Router) Clear(event manifest.HookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event == "" {
		r.handlers = make(map[manifest.HookEvent][]*entry)
		return
	}
	delete(r.handlers, event)
}

// HasHandlers reports whether event has at least one registered handler.
func (r *Router) HasHandlers(event manifest.HookEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[event]) > 0
}

// Count returns the number of handlers registered for event.
func (r *Router) Count(event manifest.HookEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[event])
}

func (r *Router) resort(event manifest.HookEvent) {
	list := r.handlers[event]
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
}

func (r *Router) removeLocked(event manifest.HookEvent, id string) {
	list := r.handlers[event]
	for i, e := range list {
		if e.id == id {
			r.handlers[event] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
