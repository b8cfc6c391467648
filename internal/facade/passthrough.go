package facade

import (
	"context"
	"time"

	"github.com/PhilosopherRex/snapper/internal/apperr"
	"github.com/PhilosopherRex/snapper/internal/bus"
	"github.com/PhilosopherRex/snapper/internal/hooks"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

// OnHook subscribes to a host lifecycle event via the Hook Router,
// gated by session:hook.
func (f *Facade) OnHook(event manifest.HookEvent, handler hooks.Handler, opts hooks.Options) (func(), error) {
	if err := f.requirePermission(manifest.PermSessionHook); err != nil {
		return nil, err
	}
	unsubscribe := f.router.On(event, handler, opts)
	f.track(unsubscribe)
	return unsubscribe, nil
}

// OnceHook is the once() variant of OnHook.
func (f *Facade) OnceHook(event manifest.HookEvent, handler hooks.Handler, opts hooks.Options) (func(), error) {
	if err := f.requirePermission(manifest.PermSessionHook); err != nil {
		return nil, err
	}
	unsubscribe := f.router.Once(event, handler, opts)
	f.track(unsubscribe)
	return unsubscribe, nil
}

// ToastOptions configures ShowToast.
type ToastOptions struct {
	Message  string
	Level    string
	Duration time.Duration
}

// ShowToast forwards to the host, gated by ui:toast. The core's only
// responsibility here is permission enforcement (spec §4.6).
func (f *Facade) ShowToast(opts ToastOptions) error {
	if err := f.requirePermission(manifest.PermUIToast); err != nil {
		return err
	}
	if f.showToast != nil {
		f.showToast(opts)
	}
	return nil
}

// InjectPromptContext hands text off to the host, gated by
// prompt:inject. Priority is an opaque ordering hint the host
// interprets (SPEC_FULL.md Open Question decision: treated as a pure
// pass-through int, not reinterpreted by the core).
func (f *Facade) InjectPromptContext(text string, priority int) error {
	if err := f.requirePermission(manifest.PermPromptInject); err != nil {
		return err
	}
	if f.injectPromptContext != nil {
		f.injectPromptContext(text, priority)
	}
	return nil
}

// Publish forwards to the Message Bus with this app as sender, gated by
// bus:publish.
func (f *Facade) Publish(channel string, message interface{}) error {
	if err := f.requirePermission(manifest.PermBusPublish); err != nil {
		return err
	}
	f.msgBus.Publish(channel, message, f.appID)
	return nil
}

// Subscribe forwards to the Message Bus, gated by bus:subscribe.
func (f *Facade) Subscribe(channel string, handler bus.Handler) (func(), error) {
	if err := f.requirePermission(manifest.PermBusSubscribe); err != nil {
		return nil, err
	}
	unsubscribe := f.msgBus.Subscribe(channel, handler)
	f.track(unsubscribe)
	return unsubscribe, nil
}

// Request issues an RPC call to another app's registered method, gated
// by bus:publish (an RPC request is, from this app's side, an outbound
// publish onto the reserved rpc: channel per spec §4.4).
func (f *Facade) Request(ctx context.Context, targetApp, method string, payload interface{}, timeout time.Duration) (interface{}, error) {
	if err := f.requirePermission(manifest.PermBusPublish); err != nil {
		return nil, err
	}
	if f.rpc == nil {
		return nil, apperr.UnknownMethod(targetApp, method)
	}
	return f.rpc.Request(ctx, targetApp, method, payload, timeout, f.appID)
}
