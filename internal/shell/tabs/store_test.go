package tabs

import (
	"context"
	"testing"

	"github.com/bnema/marlin/internal/domain/entity"
	"github.com/bnema/marlin/internal/domain/repository"
	"github.com/bnema/marlin/internal/event"
	"github.com/bnema/marlin/internal/ident"
	"github.com/bnema/marlin/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *event.Bus, repository.StateRepository) {
	t.Helper()
	bus := event.NewBus()
	repo := memory.NewStateRepository()
	store := NewStore(context.Background(), Config{
		Bus:  bus,
		IDs:  ident.NewSequenceGenerator(),
		Repo: repo,
	})
	return store, bus, repo
}

func addThree(t *testing.T, store *Store) (a, b, c *entity.Tab) {
	t.Helper()
	a = store.AddTab(Attrs{Title: "A"})
	b = store.AddTab(Attrs{Title: "B"})
	c = store.AddTab(Attrs{Title: "C"})
	return a, b, c
}

func tabIDs(store *Store) []entity.TabID {
	tabs := store.Tabs()
	ids := make([]entity.TabID, len(tabs))
	for i, tab := range tabs {
		ids[i] = tab.ID
	}
	return ids
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestAddTabActivatesAndEmits(t *testing.T) {
	store, bus, _ := newTestStore(t)

	var order []event.Kind
	bus.Subscribe(event.KindTabAdded, func(ev event.Event) { order = append(order, ev.Kind) })
	bus.Subscribe(event.KindStateChanged, func(ev event.Event) { order = append(order, ev.Kind) })

	tab := store.AddTab(Attrs{Title: "Example", URL: "https://example.com"})

	require.NotNil(t, tab)
	assert.Equal(t, "Example", tab.Title)
	assert.False(t, tab.IsLoading)
	assert.Equal(t, tab.ID, store.ActiveTabID())
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, []event.Kind{event.KindTabAdded, event.KindStateChanged}, order)
}

func TestAddTabDefaultTitle(t *testing.T) {
	store, _, _ := newTestStore(t)
	tab := store.AddTab(Attrs{})
	assert.Equal(t, entity.DefaultTabTitle, tab.Title)
	assert.Empty(t, tab.URL)
}

func TestActiveTabInvariant(t *testing.T) {
	store, _, _ := newTestStore(t)

	// After every add/remove either the active ID refers to an existing
	// tab, or the collection is empty and the active ID is empty.
	check := func() {
		t.Helper()
		if store.Count() == 0 {
			assert.Empty(t, store.ActiveTabID())
			return
		}
		require.NotNil(t, store.ActiveTab())
	}

	a, b, c := addThree(t, store)
	check()
	store.RemoveTab(b.ID)
	check()
	store.RemoveTab(a.ID)
	check()
	store.RemoveTab(c.ID)
	check()
	assert.Equal(t, 0, store.Count())
}

func TestRemoveTabLeftNeighborRule(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, c := addThree(t, store)

	store.SetActiveTab(b.ID)
	store.RemoveTab(b.ID)

	assert.Equal(t, a.ID, store.ActiveTabID())
	assert.Equal(t, []entity.TabID{a.ID, c.ID}, tabIDs(store))
}

func TestRemoveFirstActiveTabSelectsIndexZero(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, _ := addThree(t, store)

	store.SetActiveTab(a.ID)
	store.RemoveTab(a.ID)

	assert.Equal(t, b.ID, store.ActiveTabID())
}

func TestRemoveLastTabClearsActive(t *testing.T) {
	store, bus, _ := newTestStore(t)
	tab := store.AddTab(Attrs{})

	var cleared bool
	bus.Subscribe(event.KindActiveTabChanged, func(ev event.Event) {
		cleared = ev.TabID == "" && ev.Tab == nil
	})

	store.RemoveTab(tab.ID)

	assert.Equal(t, 0, store.Count())
	assert.Empty(t, store.ActiveTabID())
	assert.True(t, cleared, "expected an activeTabChanged event with no tab")
}

func TestRemoveUnknownTabIsNoOp(t *testing.T) {
	store, bus, _ := newTestStore(t)
	store.AddTab(Attrs{})

	var events int
	bus.Subscribe(event.KindStateChanged, func(event.Event) { events++ })

	store.RemoveTab("tab-nope")
	assert.Equal(t, 1, store.Count())
	assert.Zero(t, events)
}

func TestRemoveInactiveTabKeepsActive(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, c := addThree(t, store)

	store.SetActiveTab(b.ID)
	store.RemoveTab(a.ID)

	assert.Equal(t, b.ID, store.ActiveTabID())
	assert.Equal(t, []entity.TabID{b.ID, c.ID}, tabIDs(store))
}

func TestCloseOtherTabs(t *testing.T) {
	store, bus, _ := newTestStore(t)
	a, b, c := addThree(t, store)

	var removed []entity.TabID
	var stateChanges int
	bus.Subscribe(event.KindTabRemoved, func(ev event.Event) { removed = append(removed, ev.TabID) })
	bus.Subscribe(event.KindStateChanged, func(event.Event) { stateChanges++ })

	store.CloseOtherTabs(b.ID)

	assert.Equal(t, []entity.TabID{b.ID}, tabIDs(store))
	assert.Equal(t, b.ID, store.ActiveTabID())
	assert.ElementsMatch(t, []entity.TabID{a.ID, c.ID}, removed)
	assert.Equal(t, 1, stateChanges, "bulk close emits one stateChanged")
}

func TestCloseTabsToRight(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, c := addThree(t, store)
	store.SetActiveTab(c.ID)

	store.CloseTabsToRight(a.ID)

	assert.Equal(t, []entity.TabID{a.ID}, tabIDs(store))
	assert.Equal(t, a.ID, store.ActiveTabID())
	_ = b
}

func TestCloseTabsToRightOfLastIsNoOp(t *testing.T) {
	store, bus, _ := newTestStore(t)
	_, _, c := addThree(t, store)

	var stateChanges int
	bus.Subscribe(event.KindStateChanged, func(event.Event) { stateChanges++ })

	store.CloseTabsToRight(c.ID)
	assert.Equal(t, 3, store.Count())
	assert.Zero(t, stateChanges)
}

func TestDuplicateTabInsertsAfterSource(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, c := addThree(t, store)
	store.UpdateTab(a.ID, Update{URL: strPtr("https://example.com"), Favicon: strPtr("globe")})

	dup := store.DuplicateTab(a.ID)

	require.NotNil(t, dup)
	assert.Equal(t, []entity.TabID{a.ID, dup.ID, b.ID, c.ID}, tabIDs(store))
	assert.Equal(t, dup.ID, store.ActiveTabID())
	assert.Equal(t, "https://example.com", dup.URL)
	assert.Equal(t, "globe", dup.Favicon)
	assert.NotEqual(t, a.ID, dup.ID)
}

func TestPinPartitionInvariant(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, c := addThree(t, store)
	d := store.AddTab(Attrs{Title: "D"})

	store.TogglePinTab(c.ID)
	store.TogglePinTab(a.ID)

	// Pinned tabs in pin order, then unpinned in original relative order.
	assert.Equal(t, []entity.TabID{c.ID, a.ID, b.ID, d.ID}, tabIDs(store))

	// No unpinned tab may precede a pinned one.
	seenUnpinned := false
	for _, tab := range store.Tabs() {
		if !tab.IsPinned {
			seenUnpinned = true
		} else {
			assert.False(t, seenUnpinned, "pinned tab after unpinned tab")
		}
	}

	// Unpinning relocates to the front of the unpinned partition.
	store.TogglePinTab(c.ID)
	assert.Equal(t, []entity.TabID{a.ID, c.ID, b.ID, d.ID}, tabIDs(store))
}

func TestReorderTab(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, c := addThree(t, store)

	// Dragging C onto A inserts C before A.
	store.ReorderTab(c.ID, a.ID)
	assert.Equal(t, []entity.TabID{c.ID, a.ID, b.ID}, tabIDs(store))

	// Dragging leftmost onto rightmost inserts before the target's
	// post-removal position.
	store.ReorderTab(c.ID, b.ID)
	assert.Equal(t, []entity.TabID{a.ID, c.ID, b.ID}, tabIDs(store))
}

func TestReorderAcrossPinBoundaryIsNoOp(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, b, c := addThree(t, store)
	store.TogglePinTab(a.ID)

	before := tabIDs(store)
	store.ReorderTab(a.ID, c.ID) // pinned onto unpinned
	assert.Equal(t, before, tabIDs(store))

	store.ReorderTab(b.ID, a.ID) // unpinned onto pinned
	assert.Equal(t, before, tabIDs(store))
}

func TestSetActiveTabEmitsAndMirrors(t *testing.T) {
	store, bus, _ := newTestStore(t)
	a, b, _ := addThree(t, store)
	store.UpdateTab(a.ID, Update{CanGoBack: boolPtr(true)})

	var got entity.TabID
	bus.Subscribe(event.KindActiveTabChanged, func(ev event.Event) { got = ev.TabID })

	store.SetActiveTab(a.ID)
	assert.Equal(t, a.ID, got)
	back, fwd := store.NavState()
	assert.True(t, back)
	assert.False(t, fwd)

	store.SetActiveTab(b.ID)
	back, _ = store.NavState()
	assert.False(t, back, "mirrors re-derive from the newly active tab")
}

func TestSetActiveTabUnknownIsNoOp(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, _, _ := addThree(t, store)
	store.SetActiveTab(a.ID)
	store.SetActiveTab("tab-nope")
	assert.Equal(t, a.ID, store.ActiveTabID())
}

func TestUpdateTabPersistsOnlyDurableFields(t *testing.T) {
	store, _, repo := newTestStore(t)
	a, _, _ := addThree(t, store)

	ctx := context.Background()
	before, err := repo.Get(ctx, repository.KeyTabs)
	require.NoError(t, err)

	// Navigation flags alone do not persist.
	store.UpdateTab(a.ID, Update{CanGoBack: boolPtr(true)})
	after, err := repo.Get(ctx, repository.KeyTabs)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	// A title change does.
	store.UpdateTab(a.ID, Update{Title: strPtr("Changed")})
	after, err = repo.Get(ctx, repository.KeyTabs)
	require.NoError(t, err)
	assert.NotEqual(t, string(before), string(after))
}

func TestSetTabLoadingMirrorsActive(t *testing.T) {
	store, bus, _ := newTestStore(t)
	tab := store.AddTab(Attrs{Title: "Example", URL: "https://example.com"})

	var ev event.Event
	bus.Subscribe(event.KindLoadingStateChanged, func(e event.Event) { ev = e })

	store.SetTabLoading(tab.ID, true)

	assert.Equal(t, event.KindLoadingStateChanged, ev.Kind)
	assert.Equal(t, tab.ID, ev.TabID)
	assert.True(t, ev.IsLoading)
	assert.True(t, store.IsLoading())

	store.SetTabLoading(tab.ID, false)
	assert.False(t, store.IsLoading())
}

func TestSetTabLoadingInactiveDoesNotMirror(t *testing.T) {
	store, _, _ := newTestStore(t)
	a, _, _ := addThree(t, store)
	// c is active
	store.SetTabLoading(a.ID, true)
	assert.False(t, store.IsLoading())
}

func TestRestoreFromSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStateRepository()

	first := NewStore(ctx, Config{Bus: event.NewBus(), IDs: ident.NewSequenceGenerator(), Repo: repo})
	a := first.AddTab(Attrs{Title: "A", URL: "https://a.example"})
	b := first.AddTab(Attrs{Title: "B", URL: "https://b.example"})
	first.SetActiveTab(a.ID)
	first.SetTabLoading(a.ID, true)

	second := NewStore(ctx, Config{Bus: event.NewBus(), IDs: ident.NewSequenceGenerator(), Repo: repo})
	require.Equal(t, 2, second.Count())
	assert.Equal(t, a.ID, second.ActiveTabID())
	assert.Equal(t, []entity.TabID{a.ID, b.ID}, tabIDs(second))
	assert.False(t, second.IsLoading(), "loading flags are runtime state, not restored")
}

func TestRestoreCorruptSnapshotFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStateRepository()
	require.NoError(t, repo.Set(ctx, repository.KeyTabs, []byte("{not json")))

	store := NewStore(ctx, Config{Bus: event.NewBus(), IDs: ident.NewSequenceGenerator(), Repo: repo})
	assert.Equal(t, 0, store.Count())
	assert.Empty(t, store.ActiveTabID())
}

func TestRestoreDropsDanglingActivePointer(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStateRepository()
	require.NoError(t, repo.Set(ctx, repository.KeyTabs,
		[]byte(`{"activeTabId":"tab-gone","tabs":[{"id":"tab-1","title":"A","url":""}]}`)))

	store := NewStore(ctx, Config{Bus: event.NewBus(), IDs: ident.NewSequenceGenerator(), Repo: repo})
	assert.Equal(t, entity.TabID("tab-1"), store.ActiveTabID())
}
