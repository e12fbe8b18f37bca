// Package reconciler keeps rendering surfaces in sync with the tab store.
// It is the only component that talks to the view layer; stores never hold
// surface handles.
package reconciler

import (
	"context"
	"sync"

	"github.com/bnema/marlin/internal/domain/entity"
	"github.com/bnema/marlin/internal/event"
	"github.com/bnema/marlin/internal/logging"
	"github.com/bnema/marlin/internal/shell/tabs"
	"github.com/rs/zerolog"
)

// SurfaceCallbacks is how a surface reports page-level facts back into the
// tab store. All fields are optional.
type SurfaceCallbacks struct {
	URLResolved            func(url string)
	TitleChanged           func(title string)
	FaviconChanged         func(favicon string)
	NavigationStateChanged func(canGoBack, canGoForward bool)
	LoadStarted            func()
	LoadFinished           func()
	LoadFailed             func(code int, description string)
}

// Surface is one tab's rendering handle. Implementations wrap whatever the
// host shell renders with (a web view, a test fake).
type Surface interface {
	Navigate(url string)
	Show()
	Hide()
	Destroy()
	SetCallbacks(cb SurfaceCallbacks)
}

// SurfaceFactory creates the surface for a tab.
type SurfaceFactory func(id entity.TabID) Surface

type surfaceState struct {
	surface Surface
	url     string // last URL pushed to or reported by the surface
}

// Reconciler maps tab events onto surface operations:
//
//   - tabAdded creates a surface and navigates it when the tab has a URL
//   - tabUpdated navigates only when the URL actually changed
//   - activeTabChanged switches visibility and never navigates
//   - tabRemoved destroys the surface, and only then
//
// Surface methods are never called while the reconciler lock is held, so a
// surface may invoke its callbacks synchronously.
type Reconciler struct {
	mu      sync.Mutex
	log     zerolog.Logger
	tabs    *tabs.Store
	factory SurfaceFactory

	surfaces map[entity.TabID]*surfaceState
	visible  entity.TabID
}

// New creates a Reconciler and subscribes it to the bus. Tabs that already
// exist (restored from a snapshot) get surfaces on the first Render call.
func New(ctx context.Context, bus *event.Bus, store *tabs.Store, factory SurfaceFactory) *Reconciler {
	ctx = logging.WithComponent(ctx, "reconciler")
	r := &Reconciler{
		log:      *logging.FromContext(ctx),
		tabs:     store,
		factory:  factory,
		surfaces: make(map[entity.TabID]*surfaceState),
	}
	bus.Subscribe(event.KindTabAdded, r.onTabAdded)
	bus.Subscribe(event.KindTabRemoved, r.onTabRemoved)
	bus.Subscribe(event.KindTabUpdated, r.onTabUpdated)
	bus.Subscribe(event.KindActiveTabChanged, r.onActiveTabChanged)
	return r
}

func (r *Reconciler) onTabAdded(ev event.Event) {
	if ev.Tab == nil {
		return
	}
	surface := r.ensure(ev.TabID)

	r.mu.Lock()
	state := r.surfaces[ev.TabID]
	navigate := ev.Tab.URL != "" && state.url != ev.Tab.URL
	if navigate {
		state.url = ev.Tab.URL
	}
	r.mu.Unlock()

	if navigate {
		surface.Navigate(ev.Tab.URL)
	}
	if ev.IsActiveTab || r.tabs.ActiveTabID() == ev.TabID {
		r.show(ev.TabID)
	} else {
		surface.Hide()
	}
}

func (r *Reconciler) onTabRemoved(ev event.Event) {
	r.mu.Lock()
	state, ok := r.surfaces[ev.TabID]
	if ok {
		delete(r.surfaces, ev.TabID)
	}
	if r.visible == ev.TabID {
		r.visible = ""
	}
	r.mu.Unlock()

	if ok {
		state.surface.Destroy()
		r.log.Debug().Str("tab_id", string(ev.TabID)).Msg("surface destroyed")
	}
}

func (r *Reconciler) onTabUpdated(ev event.Event) {
	if ev.Tab == nil {
		return
	}
	r.mu.Lock()
	state, ok := r.surfaces[ev.TabID]
	navigate := ok && ev.Tab.URL != "" && state.url != ev.Tab.URL
	if navigate {
		state.url = ev.Tab.URL
	}
	r.mu.Unlock()

	if navigate {
		state.surface.Navigate(ev.Tab.URL)
	}
}

func (r *Reconciler) onActiveTabChanged(ev event.Event) {
	if ev.TabID == "" {
		// Last tab closed; nothing left to show.
		r.mu.Lock()
		prev := r.takeVisibleLocked("")
		r.mu.Unlock()
		if prev != nil {
			prev.surface.Hide()
		}
		return
	}
	r.show(ev.TabID)
}

// Render forces the surface set into agreement with the store: surfaces for
// every tab, navigation where URLs drifted, exactly the active tab visible,
// and no orphan surfaces. Safe to call repeatedly.
func (r *Reconciler) Render() {
	tabSet := make(map[entity.TabID]bool)
	for _, tab := range r.tabs.Tabs() {
		tabSet[tab.ID] = true
		surface := r.ensure(tab.ID)

		r.mu.Lock()
		state := r.surfaces[tab.ID]
		navigate := tab.URL != "" && state.url != tab.URL
		if navigate {
			state.url = tab.URL
		}
		r.mu.Unlock()

		if navigate {
			surface.Navigate(tab.URL)
		}
	}

	// Orphans: surfaces whose tab has gone away.
	r.mu.Lock()
	var orphans []Surface
	for id, state := range r.surfaces {
		if !tabSet[id] {
			orphans = append(orphans, state.surface)
			delete(r.surfaces, id)
			if r.visible == id {
				r.visible = ""
			}
		}
	}
	r.mu.Unlock()
	for _, s := range orphans {
		s.Destroy()
	}

	if active := r.tabs.ActiveTabID(); active != "" {
		r.show(active)
	}
}

// ensure returns the tab's surface, creating and wiring one if needed.
func (r *Reconciler) ensure(id entity.TabID) Surface {
	r.mu.Lock()
	if state, ok := r.surfaces[id]; ok {
		r.mu.Unlock()
		return state.surface
	}
	r.mu.Unlock()

	// Created outside the lock so factories may call back synchronously.
	surface := r.factory(id)
	surface.SetCallbacks(r.callbacksFor(id))

	r.mu.Lock()
	if state, ok := r.surfaces[id]; ok {
		// Lost the race; keep the first one.
		r.mu.Unlock()
		surface.Destroy()
		return state.surface
	}
	r.surfaces[id] = &surfaceState{surface: surface}
	r.mu.Unlock()

	r.log.Debug().Str("tab_id", string(id)).Msg("surface created")
	return surface
}

// show makes the given tab's surface the visible one, hiding the previous.
func (r *Reconciler) show(id entity.TabID) {
	r.mu.Lock()
	state, ok := r.surfaces[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	prev := r.takeVisibleLocked(id)
	r.mu.Unlock()

	if prev != nil {
		prev.surface.Hide()
	}
	state.surface.Show()
}

// takeVisibleLocked swaps the visible pointer and returns the previously
// visible state when it differs, or nil.
func (r *Reconciler) takeVisibleLocked(next entity.TabID) *surfaceState {
	if r.visible == next {
		return nil
	}
	prev := r.surfaces[r.visible]
	r.visible = next
	return prev
}

// callbacksFor bridges surface reports into the tab store. The resolved URL
// is recorded before the store update so the resulting tabUpdated event does
// not bounce back as a navigation.
func (r *Reconciler) callbacksFor(id entity.TabID) SurfaceCallbacks {
	return SurfaceCallbacks{
		URLResolved: func(url string) {
			r.mu.Lock()
			if state, ok := r.surfaces[id]; ok {
				state.url = url
			}
			r.mu.Unlock()
			r.tabs.UpdateTab(id, tabs.Update{URL: &url})
		},
		TitleChanged: func(title string) {
			r.tabs.UpdateTab(id, tabs.Update{Title: &title})
		},
		FaviconChanged: func(favicon string) {
			r.tabs.UpdateTab(id, tabs.Update{Favicon: &favicon})
		},
		NavigationStateChanged: func(canGoBack, canGoForward bool) {
			r.tabs.UpdateTab(id, tabs.Update{CanGoBack: &canGoBack, CanGoForward: &canGoForward})
		},
		LoadStarted: func() {
			r.tabs.SetTabLoading(id, true)
		},
		LoadFinished: func() {
			r.tabs.SetTabLoading(id, false)
		},
		LoadFailed: func(code int, description string) {
			r.log.Warn().Str("tab_id", string(id)).Int("code", code).Str("description", description).Msg("page load failed")
			r.tabs.SetTabLoading(id, false)
		},
	}
}
