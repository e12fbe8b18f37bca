package ntp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/marlin/internal/domain/entity"
	"github.com/bnema/marlin/internal/domain/repository"
	"github.com/bnema/marlin/internal/event"
	"github.com/bnema/marlin/internal/ident"
	"github.com/bnema/marlin/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *event.Bus, repository.StateRepository) {
	t.Helper()
	bus := event.NewBus()
	repo := memory.NewStateRepository()
	s := NewStore(context.Background(), Config{
		Bus:  bus,
		IDs:  ident.NewSequenceGenerator(),
		Repo: repo,
	})
	return s, bus, repo
}

func favoriteIDs(s *Store) []entity.FavoriteID {
	favs := s.Favorites()
	ids := make([]entity.FavoriteID, len(favs))
	for i, f := range favs {
		ids[i] = f.ID
	}
	return ids
}

func TestAddFavoriteAppendsAndEmits(t *testing.T) {
	s, bus, _ := newStore(t)

	var mu sync.Mutex
	var kinds []event.Kind
	for _, k := range []event.Kind{event.KindNTPUpdated, event.KindStateChanged} {
		bus.Subscribe(k, func(ev event.Event) {
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		})
	}

	fav := s.AddFavorite(Attrs{Title: "Example", URL: "https://example.com"})

	require.NotEmpty(t, fav.ID)
	require.Equal(t, []entity.FavoriteID{fav.ID}, favoriteIDs(s))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []event.Kind{event.KindNTPUpdated, event.KindStateChanged}, kinds)
}

func TestUpdateFavoritePatchesOnlyGivenFields(t *testing.T) {
	s, _, _ := newStore(t)
	fav := s.AddFavorite(Attrs{Title: "Example", URL: "https://example.com", Favicon: "icon.png"})

	title := "Renamed"
	s.UpdateFavorite(fav.ID, Update{Title: &title})

	got := s.Favorites()[0]
	require.Equal(t, "Renamed", got.Title)
	require.Equal(t, "https://example.com", got.URL)
	require.Equal(t, "icon.png", got.Favicon)
}

func TestRemoveFavoriteUnknownIDIsNoOp(t *testing.T) {
	s, _, _ := newStore(t)
	fav := s.AddFavorite(Attrs{URL: "https://a.com"})

	s.RemoveFavorite("fav-missing")
	require.Len(t, s.Favorites(), 1)

	s.RemoveFavorite(fav.ID)
	require.Empty(t, s.Favorites())
}

func TestReorderFavoriteLandsInTargetSlot(t *testing.T) {
	s, _, _ := newStore(t)
	f1 := s.AddFavorite(Attrs{Title: "F1"})
	f2 := s.AddFavorite(Attrs{Title: "F2"})
	f3 := s.AddFavorite(Attrs{Title: "F3"})

	// Dragging the last onto the first puts it in front.
	s.ReorderFavorite(f3.ID, f1.ID)
	require.Equal(t, []entity.FavoriteID{f3.ID, f1.ID, f2.ID}, favoriteIDs(s))

	// And dragging forward lands it in the target's old slot.
	s.ReorderFavorite(f3.ID, f2.ID)
	require.Equal(t, []entity.FavoriteID{f1.ID, f3.ID, f2.ID}, favoriteIDs(s))
}

func TestReorderFavoriteSelfOrUnknownIsNoOp(t *testing.T) {
	s, _, _ := newStore(t)
	f1 := s.AddFavorite(Attrs{Title: "F1"})
	f2 := s.AddFavorite(Attrs{Title: "F2"})

	s.ReorderFavorite(f1.ID, f1.ID)
	s.ReorderFavorite(f1.ID, "fav-missing")
	s.ReorderFavorite("fav-missing", f2.ID)

	require.Equal(t, []entity.FavoriteID{f1.ID, f2.ID}, favoriteIDs(s))
}

func TestFavoritesSurviveRestore(t *testing.T) {
	bus := event.NewBus()
	repo := memory.NewStateRepository()
	s := NewStore(context.Background(), Config{Bus: bus, IDs: ident.NewSequenceGenerator(), Repo: repo})
	s.AddFavorite(Attrs{Title: "Example", URL: "https://example.com"})
	s.RegisterWidget(ClockWidget(nil))
	s.EnableWidget("clock")

	restored := NewStore(context.Background(), Config{Bus: event.NewBus(), IDs: ident.NewSequenceGenerator(), Repo: repo})

	require.Len(t, restored.Favorites(), 1)
	require.Equal(t, "Example", restored.Favorites()[0].Title)
	// Enablement is persisted but resolves empty until re-registration.
	require.Empty(t, restored.EnabledWidgets())
	restored.RegisterWidget(ClockWidget(nil))
	require.Len(t, restored.EnabledWidgets(), 1)
}

func TestRegisterWidgetRejectsMalformed(t *testing.T) {
	s, _, _ := newStore(t)

	require.False(t, s.RegisterWidget(entity.Widget{ID: "", Title: "x", Render: func(entity.Container) error { return nil }}))
	require.False(t, s.RegisterWidget(entity.Widget{ID: "x", Title: "x", Render: nil}))
	require.True(t, s.RegisterWidget(ClockWidget(nil)))
}

func TestEnableWidgetRequiresRegistration(t *testing.T) {
	s, _, _ := newStore(t)

	s.EnableWidget("clock")
	require.Empty(t, s.EnabledWidgets())

	s.RegisterWidget(ClockWidget(nil))
	s.EnableWidget("clock")
	s.EnableWidget("clock") // idempotent
	require.Len(t, s.EnabledWidgets(), 1)

	s.DisableWidget("clock")
	require.Empty(t, s.EnabledWidgets())
}

func TestEnabledWidgetsKeepEnablementOrder(t *testing.T) {
	s, _, _ := newStore(t)
	s.RegisterWidget(ClockWidget(nil))
	s.RegisterWidget(entity.Widget{ID: "notes", Title: "Notes", Render: func(entity.Container) error { return nil }})

	s.EnableWidget("notes")
	s.EnableWidget("clock")

	widgets := s.EnabledWidgets()
	require.Equal(t, "notes", widgets[0].ID)
	require.Equal(t, "clock", widgets[1].ID)
}

type fakeContainer struct {
	title string
	body  string
}

func (c *fakeContainer) SetTitle(title string) { c.title = title }
func (c *fakeContainer) SetBody(body string)   { c.body = body }

func TestClockWidgetRendersTime(t *testing.T) {
	at := time.Date(2025, time.March, 14, 9, 26, 0, 0, time.UTC)
	w := ClockWidget(func() time.Time { return at })

	var c fakeContainer
	require.NoError(t, w.Render(&c))
	require.Equal(t, "09:26", c.title)
	require.Equal(t, "Friday, March 14", c.body)
}

type fakeConversations []*entity.Conversation

func (f fakeConversations) Conversations() []*entity.Conversation { return f }

func TestRecentConversationsWidget(t *testing.T) {
	var c fakeContainer
	w := RecentConversationsWidget(fakeConversations{})
	require.NoError(t, w.Render(&c))
	require.Equal(t, "No conversations yet", c.body)

	src := make(fakeConversations, 0)
	for _, title := range []string{"one", "two", "three", "four", "five", "six"} {
		src = append(src, &entity.Conversation{Title: title})
	}
	w = RecentConversationsWidget(src)
	require.NoError(t, w.Render(&c))
	require.Equal(t, "one\ntwo\nthree\nfour\nfive", c.body)
}
