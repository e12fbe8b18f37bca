// Package ntp owns the new-tab page: the ordered favorites list and the
// widget registry.
package ntp

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

// Store owns favorites (ordered, user-arranged) and widget enablement.
// Favorites persist immediately on every mutation; widget registrations are
// runtime-only and only the enabled ID list is persisted.
type Store struct {
	mu   sync.Mutex
	log  zerolog.Logger
	ctx  context.Context
	bus  *event.Bus
	ids  ident.Generator
	repo repository.StateRepository

	favorites []*entity.Favorite
	registry  map[string]entity.Widget
	enabled   []string // ordered enabled widget IDs
}

// Config wires a Store's collaborators.
type Config struct {
	Bus  *event.Bus
	IDs  ident.Generator
	Repo repository.StateRepository
}

// NewStore creates a Store and restores the persisted snapshot, if any.
func NewStore(ctx context.Context, cfg Config) *Store {
	ctx = logging.WithComponent(ctx, "ntp")
	s := &Store{
		log:       *logging.FromContext(ctx),
		ctx:       ctx,
		bus:       cfg.Bus,
		ids:       cfg.IDs,
		repo:      cfg.Repo,
		favorites: make([]*entity.Favorite, 0),
		registry:  make(map[string]entity.Widget),
		enabled:   make([]string, 0),
	}
	s.restore()
	return s
}

// Attrs is the settable subset of a favorite.
type Attrs struct {
	Title   string
	URL     string
	Favicon string
}

// Update patches a favorite; nil fields are left untouched.
type Update struct {
	Title   *string
	URL     *string
	Favicon *string
}

// AddFavorite appends a favorite to the end of the list.
func (s *Store) AddFavorite(attrs Attrs) *entity.Favorite {
	s.mu.Lock()
	fav := &entity.Favorite{
		ID:      entity.FavoriteID(s.ids.NewID("fav")),
		Title:   attrs.Title,
		URL:     attrs.URL,
		Favicon: attrs.Favicon,
	}
	s.favorites = append(s.favorites, fav)
	s.persistLocked()
	snapshot := fav.Clone()
	s.mu.Unlock()

	s.log.Debug().Str("favorite_id", string(fav.ID)).Str("url", fav.URL).Msg("favorite added")
	s.bus.Emit(event.Event{Kind: event.KindNTPUpdated})
	return snapshot
}

// UpdateFavorite patches a favorite in place. Unknown IDs no-op.
func (s *Store) UpdateFavorite(id entity.FavoriteID, patch Update) {
	s.mu.Lock()
	fav := s.findLocked(id)
	if fav == nil {
		s.mu.Unlock()
		return
	}
	if patch.Title != nil {
		fav.Title = *patch.Title
	}
	if patch.URL != nil {
		fav.URL = *patch.URL
	}
	if patch.Favicon != nil {
		fav.Favicon = *patch.Favicon
	}
	s.persistLocked()
	s.mu.Unlock()

	s.bus.Emit(event.Event{Kind: event.KindNTPUpdated})
}

// RemoveFavorite deletes a favorite. Unknown IDs no-op.
func (s *Store) RemoveFavorite(id entity.FavoriteID) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.favorites = append(s.favorites[:idx], s.favorites[idx+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	s.bus.Emit(event.Event{Kind: event.KindNTPUpdated})
}

// ReorderFavorite moves the dragged favorite before the target's position
// after removal, so dragging onto a later favorite lands the dragged one in
// the target's old slot.
func (s *Store) ReorderFavorite(draggedID, targetID entity.FavoriteID) {
	s.mu.Lock()
	from := s.indexLocked(draggedID)
	to := s.indexLocked(targetID)
	if from < 0 || to < 0 || draggedID == targetID {
		s.mu.Unlock()
		return
	}

	fav := s.favorites[from]
	s.favorites = append(s.favorites[:from], s.favorites[from+1:]...)
	insert := s.indexLocked(targetID)
	s.favorites = append(s.favorites[:insert], append([]*entity.Favorite{fav}, s.favorites[insert:]...)...)
	s.persistLocked()
	s.mu.Unlock()

	s.bus.Emit(event.Event{Kind: event.KindNTPUpdated})
}

// Favorites returns ordered snapshots.
func (s *Store) Favorites() []*entity.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Favorite, len(s.favorites))
	for i, fav := range s.favorites {
		out[i] = fav.Clone()
	}
	return out
}

// RegisterWidget records a widget registration. Malformed registrations are
// logged and rejected; registering never enables.
func (s *Store) RegisterWidget(w entity.Widget) bool {
	if !w.Valid() {
		s.log.Warn().Str("widget_id", w.ID).Msg("rejecting malformed widget registration")
		return false
	}
	s.mu.Lock()
	s.registry[w.ID] = w
	s.mu.Unlock()
	s.log.Debug().Str("widget_id", w.ID).Msg("widget registered")
	return true
}

// EnableWidget appends a widget ID to the enabled list. Enabling an already
// enabled or unregistered widget is a no-op.
func (s *Store) EnableWidget(id string) {
	s.mu.Lock()
	if _, ok := s.registry[id]; !ok {
		s.mu.Unlock()
		return
	}
	for _, e := range s.enabled {
		if e == id {
			s.mu.Unlock()
			return
		}
	}
	s.enabled = append(s.enabled, id)
	s.persistLocked()
	s.mu.Unlock()

	s.bus.Emit(event.Event{Kind: event.KindNTPUpdated})
}

// DisableWidget removes a widget ID from the enabled list.
func (s *Store) DisableWidget(id string) {
	s.mu.Lock()
	idx := -1
	for i, e := range s.enabled {
		if e == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.enabled = append(s.enabled[:idx], s.enabled[idx+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	s.bus.Emit(event.Event{Kind: event.KindNTPUpdated})
}

// EnabledWidgets resolves the enabled ID list against the registry, in
// enablement order. IDs whose widget is not (or no longer) registered are
// skipped; a restored snapshot may reference widgets a later build removed.
func (s *Store) EnabledWidgets() []entity.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Widget, 0, len(s.enabled))
	for _, id := range s.enabled {
		if w, ok := s.registry[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

func (s *Store) findLocked(id entity.FavoriteID) *entity.Favorite {
	for _, fav := range s.favorites {
		if fav.ID == id {
			return fav
		}
	}
	return nil
}

func (s *Store) indexLocked(id entity.FavoriteID) int {
	for i, fav := range s.favorites {
		if fav.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked() {
	snapshot := entity.NTPSnapshot{
		Favorites:      s.favorites,
		EnabledWidgets: s.enabled,
	}
	blob, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal ntp snapshot")
		return
	}
	if err := s.repo.Set(s.ctx, repository.KeyNTP, blob); err != nil {
		s.log.Error().Err(err).Msg("failed to persist ntp snapshot")
	}
}

func (s *Store) restore() {
	blob, err := s.repo.Get(s.ctx, repository.KeyNTP)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read ntp snapshot")
		return
	}
	if len(blob) == 0 {
		return
	}
	var snapshot entity.NTPSnapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		s.log.Warn().Err(err).Msg("corrupt ntp snapshot, starting empty")
		return
	}
	for _, fav := range snapshot.Favorites {
		if fav == nil || fav.ID == "" {
			continue
		}
		s.favorites = append(s.favorites, fav)
	}
	s.enabled = append(s.enabled, snapshot.EnabledWidgets...)
	s.log.Info().Int("favorites", len(s.favorites)).Int("enabled_widgets", len(s.enabled)).Msg("ntp restored from snapshot")
}
