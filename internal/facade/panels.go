package facade

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

// PanelEventType mirrors TabEventType for panels.
type PanelEventType string

const (
	PanelActivated PanelEventType = "activated"
	PanelClosed    PanelEventType = "closed"
	PanelUpdated   PanelEventType = "updated"
)

// PanelEvent is delivered to onPanelEvent handlers.
type PanelEvent struct {
	Type    PanelEventType
	PanelID string
}

// Panel is a registered UI panel's descriptor.
type Panel struct {
	ID       string
	Title    string
	Data     interface{}
	Expanded bool
}

type panelRegistry struct {
	appID   string
	mu      sync.Mutex
	counter int
	panels  map[string]*Panel
	onEvent []*panelEventListener
}

type panelEventListener struct {
	id      string
	handler func(PanelEvent)
}

func newPanelRegistry(appID string) *panelRegistry {
	return &panelRegistry{appID: appID, panels: make(map[string]*Panel)}
}

func (r *panelRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels = make(map[string]*Panel)
	r.onEvent = nil
}

// RegisterPanel creates a new panel, gated by ui:panel.
func (f *Facade) RegisterPanel(title string, data interface{}) (string, error) {
	if err := f.requirePermission(manifest.PermUIPanel); err != nil {
		return "", err
	}
	r := f.panels
	r.mu.Lock()
	r.counter++
	id := fmt.Sprintf("panel_%s_%d", r.appID, r.counter)
	r.panels[id] = &Panel{ID: id, Title: title, Data: data}
	r.mu.Unlock()

	r.emit(PanelEvent{Type: PanelActivated, PanelID: id})
	return id, nil
}

// UnregisterPanel removes a panel, gated by ui:panel.
func (f *Facade) UnregisterPanel(id string) error {
	if err := f.requirePermission(manifest.PermUIPanel); err != nil {
		return err
	}
	r := f.panels
	r.mu.Lock()
	delete(r.panels, id)
	r.mu.Unlock()

	r.emit(PanelEvent{Type: PanelClosed, PanelID: id})
	return nil
}

// UpdatePanel mutates an existing panel's title/data in place.
func (f *Facade) UpdatePanel(id, title string, data interface{}) error {
	if err := f.requirePermission(manifest.PermUIPanel); err != nil {
		return err
	}
	r := f.panels
	r.mu.Lock()
	panel, ok := r.panels[id]
	if ok {
		panel.Title = title
		panel.Data = data
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	r.emit(PanelEvent{Type: PanelUpdated, PanelID: id})
	return nil
}

// TogglePanel flips the panel's expanded flag, or sets it explicitly
// when expanded is non-nil.
func (f *Facade) TogglePanel(id string, expanded *bool) error {
	if err := f.requirePermission(manifest.PermUIPanel); err != nil {
		return err
	}
	r := f.panels
	r.mu.Lock()
	panel, ok := r.panels[id]
	if ok {
		if expanded != nil {
			panel.Expanded = *expanded
		} else {
			panel.Expanded = !panel.Expanded
		}
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	r.emit(PanelEvent{Type: PanelUpdated, PanelID: id})
	return nil
}

// GetPanels returns all currently registered panels.
func (f *Facade) GetPanels() []*Panel {
	r := f.panels
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Panel, 0, len(r.panels))
	for _, p := range r.panels {
		out = append(out, p)
	}
	return out
}

// OnPanelEvent subscribes handler to panel lifecycle events, returning
// an unsubscribe closure. Listeners are tracked by a stable generated id
// rather than a captured slice index, so unsubscribing one listener out
// of order never misidentifies another.
func (f *Facade) OnPanelEvent(handler func(PanelEvent)) func() {
	r := f.panels
	r.mu.Lock()
	id := uuid.NewString()
	r.onEvent = append(r.onEvent, &panelEventListener{id: id, handler: handler})
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

func (r *panelRegistry) emit(ev PanelEvent) {
	r.mu.Lock()
	listeners := make([]*panelEventListener, len(r.onEvent))
	copy(listeners, r.onEvent)
	r.mu.Unlock()

	for _, l := range listeners {
		safeInvokePanelHandler(l.handler, ev)
	}
}

func safeInvokePanelHandler(h func(PanelEvent), ev PanelEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Component("facade").Error().Interface("recovered", rec).Msg("panel event handler panicked")
		}
	}()
	h(ev)
}
