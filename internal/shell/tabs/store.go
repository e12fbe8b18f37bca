// Package tabs owns the ordered tab collection, the active-tab pointer, and
// the navigation/loading mirrors derived from the active tab.
package tabs

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bnema/marlin/internal/domain/entity"
	"github.com/bnema/marlin/internal/domain/repository"
	"github.com/bnema/marlin/internal/event"
	"github.com/bnema/marlin/internal/ident"
	"github.com/bnema/marlin/internal/logging"
	"github.com/rs/zerolog"
)

// Store is the single owner of tab state. All mutation entry points are
// silent no-ops for unknown IDs; event-driven UI code feeds them stale IDs
// routinely and that must never escalate.
type Store struct {
	mu   sync.Mutex
	log  zerolog.Logger
	ctx  context.Context
	bus  *event.Bus
	ids  ident.Generator
	repo repository.StateRepository

	tabs     []*entity.Tab
	activeID entity.TabID

	// Mirrors of the active tab, re-derived on activation and updates.
	isLoading    bool
	canGoBack    bool
	canGoForward bool
}

// Config wires a Store's collaborators.
type Config struct {
	Bus  *event.Bus
	IDs  ident.Generator
	Repo repository.StateRepository
}

// Attrs are the optional creation attributes for a new tab.
type Attrs struct {
	Title   string
	URL     string
	Favicon string
}

// Update is a partial-merge patch for UpdateTab. Nil fields are left
// untouched.
type Update struct {
	Title        *string
	URL          *string
	Favicon      *string
	CanGoBack    *bool
	CanGoForward *bool
}

// NewStore creates a Store and restores the persisted snapshot, if any.
// A corrupt snapshot falls back to an empty collection.
func NewStore(ctx context.Context, cfg Config) *Store {
	ctx = logging.WithComponent(ctx, "tabs")
	s := &Store{
		log:  *logging.FromContext(ctx),
		ctx:  ctx,
		bus:  cfg.Bus,
		ids:  cfg.IDs,
		repo: cfg.Repo,
		tabs: make([]*entity.Tab, 0),
	}
	s.restore()
	return s
}

// AddTab creates a tab, appends it to the end of the collection (new tabs
// are always unpinned, pin ordering is not consulted), and makes it active.
func (s *Store) AddTab(attrs Attrs) *entity.Tab {
	s.mu.Lock()

	tab := entity.NewTab(entity.TabID(s.ids.NewID("tab")))
	if attrs.Title != "" {
		tab.Title = attrs.Title
	}
	tab.URL = attrs.URL
	tab.Favicon = attrs.Favicon

	s.tabs = append(s.tabs, tab)
	s.activeID = tab.ID
	s.deriveMirrorsLocked()
	s.persistLocked()

	snapshot := tab.Clone()
	s.mu.Unlock()

	s.log.Debug().Str("tab_id", string(tab.ID)).Str("url", tab.URL).Msg("tab added")
	s.bus.Emit(event.Event{Kind: event.KindTabAdded, TabID: tab.ID, Tab: snapshot, IsActiveTab: true})
	return snapshot
}

// RemoveTab removes the tab with the given ID. If it was active, the tab
// immediately to its left (or index 0) becomes active before any other
// removal side effect; with no tabs left the active pointer clears.
func (s *Store) RemoveTab(id entity.TabID) {
	s.mu.Lock()

	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	wasActive := s.activeID == id
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)

	var activation *event.Event
	if wasActive {
		if len(s.tabs) > 0 {
			replacement := idx - 1
			if replacement < 0 {
				replacement = 0
			}
			s.activeID = s.tabs[replacement].ID
			active := s.tabs[replacement].Clone()
			activation = &event.Event{
				Kind:        event.KindActiveTabChanged,
				TabID:       active.ID,
				Tab:         active,
				IsActiveTab: true,
			}
		} else {
			s.activeID = ""
			activation = &event.Event{Kind: event.KindActiveTabChanged}
		}
	}
	s.deriveMirrorsLocked()
	s.persistLocked()
	s.mu.Unlock()

	s.log.Debug().Str("tab_id", string(id)).Bool("was_active", wasActive).Msg("tab removed")
	if activation != nil {
		s.bus.Publish(*activation)
	}
	s.bus.Emit(event.Event{Kind: event.KindTabRemoved, TabID: id})
}

// CloseOtherTabs removes every tab except the given one, which becomes (or
// remains) active. State persists once.
func (s *Store) CloseOtherTabs(keepID entity.TabID) {
	s.closeBulk(keepID, func(i, keepIdx int) bool { return i != keepIdx })
}

// CloseTabsToRight removes every tab after the given one, which becomes (or
// remains) active. State persists once.
func (s *Store) CloseTabsToRight(id entity.TabID) {
	s.closeBulk(id, func(i, keepIdx int) bool { return i > keepIdx })
}

func (s *Store) closeBulk(keepID entity.TabID, closes func(i, keepIdx int) bool) {
	s.mu.Lock()

	keepIdx := s.indexLocked(keepID)
	if keepIdx < 0 {
		s.mu.Unlock()
		return
	}

	var removed []entity.TabID
	survivors := make([]*entity.Tab, 0, len(s.tabs))
	for i, tab := range s.tabs {
		if closes(i, keepIdx) {
			removed = append(removed, tab.ID)
		} else {
			survivors = append(survivors, tab)
		}
	}
	if len(removed) == 0 {
		s.mu.Unlock()
		return
	}

	s.tabs = survivors
	activeChanged := s.activeID != keepID
	s.activeID = keepID
	s.deriveMirrorsLocked()
	s.persistLocked()

	var active *entity.Tab
	if activeChanged {
		active = s.findLocked(keepID).Clone()
	}
	s.mu.Unlock()

	s.log.Debug().Int("closed", len(removed)).Str("kept", string(keepID)).Msg("bulk tab close")
	if activeChanged {
		s.bus.Publish(event.Event{Kind: event.KindActiveTabChanged, TabID: keepID, Tab: active, IsActiveTab: true})
	}
	for _, id := range removed {
		s.bus.Publish(event.Event{Kind: event.KindTabRemoved, TabID: id})
	}
	s.bus.Publish(event.Event{Kind: event.KindStateChanged})
}

// DuplicateTab clones a tab's title, URL, and favicon into a new tab
// inserted immediately after the source, and activates it.
func (s *Store) DuplicateTab(id entity.TabID) *entity.Tab {
	s.mu.Lock()

	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	source := s.tabs[idx]
	dup := entity.NewTab(entity.TabID(s.ids.NewID("tab")))
	dup.Title = source.Title
	dup.URL = source.URL
	dup.Favicon = source.Favicon

	s.tabs = append(s.tabs[:idx+1], append([]*entity.Tab{dup}, s.tabs[idx+1:]...)...)
	s.activeID = dup.ID
	s.deriveMirrorsLocked()
	s.persistLocked()

	snapshot := dup.Clone()
	s.mu.Unlock()

	s.log.Debug().Str("source", string(id)).Str("tab_id", string(dup.ID)).Msg("tab duplicated")
	s.bus.Emit(event.Event{Kind: event.KindTabAdded, TabID: dup.ID, Tab: snapshot, IsActiveTab: true})
	return snapshot
}

// TogglePinTab flips a tab's pin flag and relocates it to the
// pinned/unpinned boundary. The insertion is stable: relative order within
// each partition is preserved, never a full re-sort.
func (s *Store) TogglePinTab(id entity.TabID) {
	s.mu.Lock()

	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	tab := s.tabs[idx]
	tab.IsPinned = !tab.IsPinned
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)

	// The boundary index serves both directions: a newly pinned tab lands
	// after the last pinned tab, a newly unpinned one becomes the first
	// unpinned tab.
	boundary := 0
	for _, t := range s.tabs {
		if t.IsPinned {
			boundary++
		}
	}
	s.tabs = append(s.tabs[:boundary], append([]*entity.Tab{tab}, s.tabs[boundary:]...)...)
	s.persistLocked()

	snapshot := tab.Clone()
	isActive := s.activeID == id
	s.mu.Unlock()

	s.log.Debug().Str("tab_id", string(id)).Bool("pinned", snapshot.IsPinned).Msg("tab pin toggled")
	s.bus.Emit(event.Event{Kind: event.KindTabUpdated, TabID: id, Tab: snapshot, IsActiveTab: isActive})
}

// ReorderTab removes the dragged tab and reinserts it immediately before
// the target's current position. Dragging across the pinned/unpinned
// boundary is a no-op.
func (s *Store) ReorderTab(draggedID, targetID entity.TabID) {
	s.mu.Lock()

	draggedIdx := s.indexLocked(draggedID)
	targetIdx := s.indexLocked(targetID)
	if draggedIdx < 0 || targetIdx < 0 || draggedIdx == targetIdx {
		s.mu.Unlock()
		return
	}
	if s.tabs[draggedIdx].IsPinned != s.tabs[targetIdx].IsPinned {
		s.mu.Unlock()
		return
	}

	dragged := s.tabs[draggedIdx]
	s.tabs = append(s.tabs[:draggedIdx], s.tabs[draggedIdx+1:]...)

	// Target position after removal, not before: dragging leftward and
	// rightward land differently otherwise.
	insertAt := s.indexLocked(targetID)
	s.tabs = append(s.tabs[:insertAt], append([]*entity.Tab{dragged}, s.tabs[insertAt:]...)...)
	s.persistLocked()
	s.mu.Unlock()

	s.log.Debug().Str("dragged", string(draggedID)).Str("target", string(targetID)).Msg("tab reordered")
	s.bus.Publish(event.Event{Kind: event.KindStateChanged})
}

// SetActiveTab activates the tab and re-derives the navigation and loading
// mirrors from it. The address bar resynchronizes through the emitted
// activeTabChanged event.
func (s *Store) SetActiveTab(id entity.TabID) {
	s.mu.Lock()

	tab := s.findLocked(id)
	if tab == nil {
		s.mu.Unlock()
		return
	}

	s.activeID = id
	s.deriveMirrorsLocked()
	s.persistLocked()

	snapshot := tab.Clone()
	s.mu.Unlock()

	s.log.Debug().Str("tab_id", string(id)).Msg("active tab changed")
	s.bus.Emit(event.Event{Kind: event.KindActiveTabChanged, TabID: id, Tab: snapshot, IsActiveTab: true})
}

// UpdateTab merges the patch into the tab. Navigation flags mirror into the
// store-wide state when the tab is active. Persistence happens only when
// URL, title, or favicon actually changed.
func (s *Store) UpdateTab(id entity.TabID, patch Update) {
	s.mu.Lock()

	tab := s.findLocked(id)
	if tab == nil {
		s.mu.Unlock()
		return
	}

	durable := false
	if patch.Title != nil && *patch.Title != tab.Title {
		tab.Title = *patch.Title
		durable = true
	}
	if patch.URL != nil && *patch.URL != tab.URL {
		tab.URL = *patch.URL
		durable = true
	}
	if patch.Favicon != nil && *patch.Favicon != tab.Favicon {
		tab.Favicon = *patch.Favicon
		durable = true
	}
	if patch.CanGoBack != nil {
		tab.CanGoBack = *patch.CanGoBack
	}
	if patch.CanGoForward != nil {
		tab.CanGoForward = *patch.CanGoForward
	}

	isActive := s.activeID == id
	if isActive {
		s.canGoBack = tab.CanGoBack
		s.canGoForward = tab.CanGoForward
	}
	if durable {
		s.persistLocked()
	}

	snapshot := tab.Clone()
	s.mu.Unlock()

	s.bus.Emit(event.Event{Kind: event.KindTabUpdated, TabID: id, Tab: snapshot, IsActiveTab: isActive})
}

// SetTabLoading sets a tab's loading flag; the active tab mirrors into the
// store-wide loading flag. Loading is runtime state and is never persisted.
func (s *Store) SetTabLoading(id entity.TabID, loading bool) {
	s.mu.Lock()

	tab := s.findLocked(id)
	if tab == nil {
		s.mu.Unlock()
		return
	}

	tab.IsLoading = loading
	isActive := s.activeID == id
	if isActive {
		s.isLoading = loading
	}

	snapshot := tab.Clone()
	s.mu.Unlock()

	s.bus.Emit(event.Event{
		Kind:        event.KindLoadingStateChanged,
		TabID:       id,
		Tab:         snapshot,
		IsActiveTab: isActive,
		IsLoading:   loading,
	})
}

// Tabs returns a snapshot of the collection in display order.
func (s *Store) Tabs() []*entity.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Tab, len(s.tabs))
	for i, tab := range s.tabs {
		out[i] = tab.Clone()
	}
	return out
}

// ActiveTab returns a snapshot of the active tab, or nil when no tabs
// exist.
func (s *Store) ActiveTab() *entity.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tab := s.findLocked(s.activeID); tab != nil {
		return tab.Clone()
	}
	return nil
}

// ActiveTabID returns the active tab's ID, or "" with an empty collection.
func (s *Store) ActiveTabID() entity.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Count returns the number of open tabs.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// IsLoading reports the process-wide "is anything loading" mirror.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// NavState reports the active tab's history availability mirrors.
func (s *Store) NavState() (canGoBack, canGoForward bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGoBack, s.canGoForward
}

// ContextSnapshot captures all open tabs for the AI pipeline.
func (s *Store) ContextSnapshot() []event.TabContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.TabContext, len(s.tabs))
	for i, tab := range s.tabs {
		out[i] = event.TabContext{
			ID:     tab.ID,
			Title:  tab.Title,
			URL:    tab.URL,
			Active: tab.ID == s.activeID,
		}
	}
	return out
}

func (s *Store) indexLocked(id entity.TabID) int {
	for i, tab := range s.tabs {
		if tab.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findLocked(id entity.TabID) *entity.Tab {
	if idx := s.indexLocked(id); idx >= 0 {
		return s.tabs[idx]
	}
	return nil
}

// deriveMirrorsLocked re-derives the loading and navigation mirrors from
// the active tab.
func (s *Store) deriveMirrorsLocked() {
	if tab := s.findLocked(s.activeID); tab != nil {
		s.isLoading = tab.IsLoading
		s.canGoBack = tab.CanGoBack
		s.canGoForward = tab.CanGoForward
		return
	}
	s.isLoading = false
	s.canGoBack = false
	s.canGoForward = false
}

// persistLocked checkpoints the collection. Storage failures are logged,
// never propagated; in-memory state stays authoritative.
func (s *Store) persistLocked() {
	snapshot := entity.TabsSnapshot{
		ActiveTabID: s.activeID,
		Tabs:        make([]entity.TabSnapshot, len(s.tabs)),
	}
	for i, tab := range s.tabs {
		snapshot.Tabs[i] = entity.TabSnapshot{
			ID:       tab.ID,
			Title:    tab.Title,
			URL:      tab.URL,
			Favicon:  tab.Favicon,
			IsPinned: tab.IsPinned,
		}
	}

	blob, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal tabs snapshot")
		return
	}
	if err := s.repo.Set(s.ctx, repository.KeyTabs, blob); err != nil {
		s.log.Error().Err(err).Msg("failed to persist tabs snapshot")
	}
}

// restore loads the persisted snapshot. Unparseable blobs are treated as
// absent.
func (s *Store) restore() {
	blob, err := s.repo.Get(s.ctx, repository.KeyTabs)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read tabs snapshot")
		return
	}
	if len(blob) == 0 {
		return
	}

	var snapshot entity.TabsSnapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		s.log.Warn().Err(err).Msg("corrupt tabs snapshot, starting empty")
		return
	}

	for _, ts := range snapshot.Tabs {
		if ts.ID == "" {
			continue
		}
		tab := entity.NewTab(ts.ID)
		if ts.Title != "" {
			tab.Title = ts.Title
		}
		tab.URL = ts.URL
		tab.Favicon = ts.Favicon
		tab.IsPinned = ts.IsPinned
		s.tabs = append(s.tabs, tab)
	}

	if s.findLocked(snapshot.ActiveTabID) != nil {
		s.activeID = snapshot.ActiveTabID
	} else if len(s.tabs) > 0 {
		s.activeID = s.tabs[0].ID
	}
	s.deriveMirrorsLocked()
	s.log.Info().Int("tabs", len(s.tabs)).Msg("tabs restored from snapshot")
}
