package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PhilosopherRex/snapper/internal/apperr"
)

// MethodHandler answers an RPC request and returns the response payload
// or an error.
type MethodHandler func(ctx context.Context, payload interface{}) (interface{}, error)

// DefaultTimeout is the request() default per spec §4.4.
const DefaultTimeout = 5000 * time.Millisecond

// rpcEnvelope is published on the reserved "rpc:<targetApp>:<method>"
// channel, per spec §4.4's documented (implementation-defined) in-process
// transport.
type rpcEnvelope struct {
	requestID string
	payload   interface{}
	sender    string
}

type rpcResult struct {
	value interface{}
	err   error
}

// Dispatcher layers RPC (registerMethod/request) on top of a Bus,
// exactly per the design note in spec §9: a dedicated call table rather
// than recursive pub/sub, so the caller resolves its deferred directly
// instead of round-tripping through another subscription.
//
// Grounded on the method-table-with-context-timeout shape documented in
// DESIGN.md (the retrieval pack's tool-registry RPC pattern), layered
// over the teacher's event bus for the underlying publish mechanics.
type Dispatcher struct {
	bus *Bus

	mu      sync.Mutex
	methods map[string]map[string]MethodHandler // appId -> method -> handler
}

// NewDispatcher creates a Dispatcher over bus.
func NewDispatcher(b *Bus) *Dispatcher {
	return &Dispatcher{
		bus:     b,
		methods: make(map[string]map[string]MethodHandler),
	}
}

// RegisterMethod stores handler under appId/method, returning an
// unregister closure.
func (d *Dispatcher) RegisterMethod(appID, method string, handler MethodHandler) func() {
	d.mu.Lock()
	if d.methods[appID] == nil {
		d.methods[appID] = make(map[string]MethodHandler)
	}
	d.methods[appID][method] = handler
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.methods[appID], method)
	}
}

// Request invokes targetApp's method handler directly and returns its
// result, honoring timeout via ctx (spec §4.4's RequestTimeout). The
// reserved "rpc:<targetApp>:<method>" channel is still published to (for
// observers/tracing), matching the documented transport, but the actual
// call is resolved via the method table rather than waiting on a
// response publish — this is precisely the design note's "resolves the
// deferred directly on the invoking side" alternative.
//
// When no handler is registered for (targetApp, method), Request does
// not fail fast: per spec §8 scenario 6 ("request with no handler
// registered rejects with RequestTimeout after >= the configured
// timeout"), it waits out the full timeout and then reports
// RequestTimeout, exactly as if a handler existed but never answered —
// see DESIGN.md's Open Question decisions for why this is chosen over
// the immediate-UnknownMethod reading of §4.4's prose.
func (d *Dispatcher) Request(ctx context.Context, targetApp, method string, payload interface{}, timeout time.Duration, sender string) (interface{}, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d.mu.Lock()
	handler, ok := d.methods[targetApp][method]
	d.mu.Unlock()
	if !ok {
		<-ctx.Done()
		return nil, apperr.RequestTimeout(targetApp, method)
	}

	requestID := uuid.NewString()
	d.bus.Publish("rpc:"+targetApp+":"+method, rpcEnvelope{
		requestID: requestID,
		payload:   payload,
		sender:    sender,
	}, sender)

	resultCh := make(chan rpcResult, 1)
	go func() {
		value, err := handler(ctx, payload)
		resultCh <- rpcResult{value: value, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.value, res.err
	case <-ctx.Done():
		return nil, apperr.RequestTimeout(targetApp, method)
	}
}

// Clear drops every registered method and forgets all pending calls.
// Pending Request calls already past their handler invocation are not
// interrupted; this only clears bookkeeping state, matching spec §4.4's
// "cancels outstanding timers" (our timers are ctx deadlines owned by
// each in-flight Request call, so there is nothing further to cancel
// here beyond the method table itself).
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods = make(map[string]map[string]MethodHandler)
}
