package facade

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

// TabEventType is the kind of lifecycle event a tab reports to its
// subscribers (spec §4.6 Tabs).
type TabEventType string

const (
	TabActivated TabEventType = "activated"
	TabClosed    TabEventType = "closed"
	TabUpdated   TabEventType = "updated"
)

// TabEvent is delivered to onTabEvent handlers.
type TabEvent struct {
	Type  TabEventType
	TabID string
}

// Tab is a registered UI tab's descriptor.
type Tab struct {
	ID    string
	Title string
	Data  interface{}
}

type tabRegistry struct {
	appID   string
	mu      sync.Mutex
	counter int
	tabs    map[string]*Tab
	onEvent []*tabEventListener
}

type tabEventListener struct {
	id      string
	handler func(TabEvent)
}

func newTabRegistry(appID string) *tabRegistry {
	return &tabRegistry{appID: appID, tabs: make(map[string]*Tab)}
}

func (r *tabRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs = make(map[string]*Tab)
	r.onEvent = nil
}

// RegisterTab creates a new tab, gated by ui:tab. Returns the new tab's
// id.
func (f *Facade) RegisterTab(title string, data interface{}) (string, error) {
	if err := f.requirePermission(manifest.PermUITab); err != nil {
		return "", err
	}
	r := f.tabs
	r.mu.Lock()
	r.counter++
	id := fmt.Sprintf("tab_%s_%d", r.appID, r.counter)
	r.tabs[id] = &Tab{ID: id, Title: title, Data: data}
	r.mu.Unlock()

	r.emit(TabEvent{Type: TabActivated, TabID: id})
	return id, nil
}

// UnregisterTab removes a tab, gated by ui:tab.
func (f *Facade) UnregisterTab(id string) error {
	if err := f.requirePermission(manifest.PermUITab); err != nil {
		return err
	}
	r := f.tabs
	r.mu.Lock()
	delete(r.tabs, id)
	r.mu.Unlock()

	r.emit(TabEvent{Type: TabClosed, TabID: id})
	return nil
}

// UpdateTab mutates an existing tab's title/data in place.
func (f *Facade) UpdateTab(id, title string, data interface{}) error {
	if err := f.requirePermission(manifest.PermUITab); err != nil {
		return err
	}
	r := f.tabs
	r.mu.Lock()
	tab, ok := r.tabs[id]
	if ok {
		tab.Title = title
		tab.Data = data
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	r.emit(TabEvent{Type: TabUpdated, TabID: id})
	return nil
}

// ActivateTab is a no-op focus hint; the core only enforces the ui:tab
// permission and does not check that id names a registered tab.
func (f *Facade) ActivateTab(id string) error {
	return f.requirePermission(manifest.PermUITab)
}

// GetTabs returns all currently registered tabs.
func (f *Facade) GetTabs() []*Tab {
	r := f.tabs
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		out = append(out, t)
	}
	return out
}

// OnTabEvent subscribes handler to tab lifecycle events, returning an
// unsubscribe closure. Handler panics/errors are swallowed (spec §4.6).
// Listeners are tracked by a stable generated id rather than a captured
// slice index, so unsubscribing one listener out of order never
// misidentifies another.
func (f *Facade) OnTabEvent(handler func(TabEvent)) func() {
	r := f.tabs
	r.mu.Lock()
	id := uuid.NewString()
	r.onEvent = append(r.onEvent, &tabEventListener{id: id, handler: handler})
	r.mu.Unlock()

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.onEvent {
			if l.id == id {
				r.onEvent = append(r.onEvent[:i], r.onEvent[i+1:]...)
				return
			}
		}
	}
	f.track(unsubscribe)
	return unsubscribe
}

func (r *tabRegistry) emit(ev TabEvent) {
	r.mu.Lock()
	listeners := make([]*tabEventListener, len(r.onEvent))
	copy(listeners, r.onEvent)
	r.mu.Unlock()

	for _, l := range listeners {
		safeInvokeTabHandler(l.handler, ev)
	}
}

func safeInvokeTabHandler(h func(TabEvent), ev TabEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Component("facade").Error().Interface("recovered", rec).Msg("tab event handler panicked")
		}
	}()
	h(ev)
}
