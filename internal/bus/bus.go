// Package bus implements the Message Bus (spec §4.4): an in-process
// pub/sub layer plus an RPC layer built on a dedicated call table.
package bus

import (
	"strconv"
	"sync"

	"github.com/PhilosopherRex/snapper/internal/logging"
)

// Handler receives a published message and the sender id (empty if the
// publisher didn't supply one).
type Handler func(message interface{}, sender string)

type subscription struct {
	id      string
	once    bool
	handler Handler
}

// Bus is the shared channel registry pub/sub is built on. RPC
// (internal/bus/rpc.go) is layered on top of the same Bus instance.
//
// Grounded on the teacher's plugin event bus (streamspace
// internal/plugins/event_bus.go): subscriber-order invocation,
// swallow-and-log handler errors, reverse-index-order removal for
// one-shot subscriptions so outstanding iteration indices stay valid.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*subscription
	seq  int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers handler on channel, returning an unsubscribe
// closure.
func (b *Bus) Subscribe(channel string, handler Handler) func() {
	return b.subscribe(channel, handler, false)
}

// SubscribeOnce registers handler on channel; it is automatically
// removed after its first delivery.
func (b *Bus) SubscribeOnce(channel string, handler Handler) func() {
	return b.subscribe(channel, handler, true)
}

func (b *Bus) subscribe(channel string, handler Handler, once bool) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	sub := &subscription{id: idFor(b.seq), once: once, handler: handler}
	b.subs[channel] = append(b.subs[channel], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeLocked(channel, sub.id)
	}
}

// Publish invokes every subscriber on channel, in subscription order,
// with (message, sender). A handler panic is recovered and logged; it
// never prevents remaining subscribers from running. One-shot
// subscribers that fired are removed afterward, in reverse index order.
func (b *Bus) Publish(channel string, message interface{}, sender string) {
	b.mu.Lock()
	snapshot := make([]*subscription, len(b.subs[channel]))
	copy(snapshot, b.subs[channel])
	b.mu.Unlock()

	var fired []int
	for i, sub := range snapshot {
		invokeHandler(sub, message, sender)
		if sub.once {
			fired = append(fired, i)
		}
	}

	if len(fired) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(fired) - 1; i >= 0; i-- {
		idx := fired[i]
		if idx < len(snapshot) {
			b.removeLocked(channel, snapshot[idx].id)
		}
	}
}

func invokeHandler(sub *subscription, message interface{}, sender string) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Component("bus").Error().
				Interface("recovered", rec).
				Str("subscriptionId", sub.id).
				Msg("bus subscriber panicked")
		}
	}()
	sub.handler(message, sender)
}

// GetSubscriberCount returns the number of live subscribers on channel.
func (b *Bus) GetSubscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

// Clear drops every subscription on the bus. RPC state (method table,
// outstanding timers) is cleared separately via Dispatcher.Clear, since
// it owns its own bookkeeping on top of this Bus.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]*subscription)
}

func (b *Bus) removeLocked(channel, id string) {
	list := b.subs[channel]
	for i, s := range list {
		if s.id == id {
			b.subs[channel] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func idFor(seq int) string {
	return "sub-" + strconv.Itoa(seq)
}
