// Package omnibox owns the in-progress edit buffer for the navigation
// input, decoupled from the committed tab URL.
package omnibox

import (
	"context"
	"sync"

	"github.com/bnema/marlin/internal/domain/entity"
	domainurl "github.com/bnema/marlin/internal/domain/url"
	"github.com/bnema/marlin/internal/event"
	"github.com/bnema/marlin/internal/logging"
	"github.com/bnema/marlin/internal/shell/tabs"
	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"
)

// FavoriteSource supplies favorites for omnibox suggestions.
type FavoriteSource interface {
	Favorites() []*entity.Favorite
}

// Suggestion is one ranked omnibox completion.
type Suggestion struct {
	Favorite *entity.Favorite
	Score    int
}

// Controller tracks the address bar buffer. The buffer resynchronizes from
// the active tab through bus events: tab activation always overwrites it,
// URL updates only when the user is not mid-edit.
type Controller struct {
	mu   sync.Mutex
	log  zerolog.Logger
	bus  *event.Bus
	tabs *tabs.Store

	value     string
	isFocused bool
	isEditing bool

	searchEngine string
	shortcuts    map[string]string
	favorites    FavoriteSource
}

// Config wires a Controller's collaborators.
type Config struct {
	Bus          *event.Bus
	Tabs         *tabs.Store
	SearchEngine string            // URL template with %s placeholder
	Shortcuts    map[string]string // bang shortcut templates
	Favorites    FavoriteSource    // optional, enables suggestions
}

// NewController creates a Controller, seeds the buffer from the active tab,
// and subscribes to tab events.
func NewController(ctx context.Context, cfg Config) *Controller {
	ctx = logging.WithComponent(ctx, "omnibox")
	c := &Controller{
		log:          *logging.FromContext(ctx),
		bus:          cfg.Bus,
		tabs:         cfg.Tabs,
		searchEngine: cfg.SearchEngine,
		shortcuts:    cfg.Shortcuts,
		favorites:    cfg.Favorites,
	}

	if active := cfg.Tabs.ActiveTab(); active != nil {
		c.value = active.URL
	}

	cfg.Bus.Subscribe(event.KindActiveTabChanged, c.onActiveTabChanged)
	cfg.Bus.Subscribe(event.KindTabAdded, c.onActiveTabChanged)
	cfg.Bus.Subscribe(event.KindTabUpdated, c.onTabUpdated)

	return c
}

// SetValue replaces the edit buffer and marks an edit in progress. The tab
// is not touched until Commit.
func (c *Controller) SetValue(text string) {
	c.mu.Lock()
	c.value = text
	c.isEditing = true
	c.mu.Unlock()

	c.bus.Publish(event.Event{Kind: event.KindAddressBarChanged, Value: text})
}

// Commit normalizes the buffer into a navigable URL, writes it onto the
// active tab, and clears the edit flag. Free text wraps into the configured
// search engine. An empty buffer or missing active tab commits nothing.
func (c *Controller) Commit() string {
	c.mu.Lock()
	input := c.value
	c.mu.Unlock()

	active := c.tabs.ActiveTab()
	url := domainurl.BuildSearchURL(input, c.shortcuts, c.searchEngine)
	if url == "" || active == nil {
		return ""
	}

	c.mu.Lock()
	c.value = url
	c.isEditing = false
	c.mu.Unlock()

	c.log.Debug().Str("url", url).Msg("address bar committed")
	c.tabs.UpdateTab(active.ID, tabs.Update{URL: &url})
	c.bus.Emit(event.Event{Kind: event.KindAddressBarCommitted, URL: url})
	return url
}

// CancelEdit resets the buffer to the active tab's committed URL (or empty)
// and clears the edit flag.
func (c *Controller) CancelEdit() {
	value := ""
	if active := c.tabs.ActiveTab(); active != nil {
		value = active.URL
	}

	c.mu.Lock()
	c.value = value
	c.isEditing = false
	c.mu.Unlock()

	c.bus.Publish(event.Event{Kind: event.KindAddressBarChanged, Value: value})
}

// SetFocus tracks input focus. Blur does not discard unsaved edits; the
// buffer survives until an explicit commit or cancel.
func (c *Controller) SetFocus(focused bool) {
	c.mu.Lock()
	c.isFocused = focused
	c.mu.Unlock()
}

// Value returns the current buffer contents.
func (c *Controller) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// IsEditing reports whether an uncommitted user edit is in progress.
func (c *Controller) IsEditing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isEditing
}

// IsFocused reports input focus.
func (c *Controller) IsFocused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isFocused
}

// Suggestions fuzzy-ranks favorites against the query. Without a favorite
// source it returns nothing.
func (c *Controller) Suggestions(query string, limit int) []Suggestion {
	if c.favorites == nil || query == "" {
		return nil
	}

	favs := c.favorites.Favorites()
	matches := fuzzy.FindFrom(query, favoriteHaystack(favs))

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Suggestion, len(matches))
	for i, m := range matches {
		out[i] = Suggestion{Favorite: favs[m.Index], Score: m.Score}
	}
	return out
}

// onActiveTabChanged overwrites the buffer from the newly active tab,
// regardless of prior contents or an edit in progress.
func (c *Controller) onActiveTabChanged(ev event.Event) {
	value := ""
	if ev.Tab != nil {
		value = ev.Tab.URL
	}

	c.mu.Lock()
	c.value = value
	c.isEditing = false
	c.mu.Unlock()

	c.bus.Publish(event.Event{Kind: event.KindAddressBarChanged, Value: value})
}

// onTabUpdated mirrors a navigated URL into the buffer, but never while the
// user is typing.
func (c *Controller) onTabUpdated(ev event.Event) {
	if !ev.IsActiveTab || ev.Tab == nil {
		return
	}

	c.mu.Lock()
	if c.isEditing || c.value == ev.Tab.URL {
		c.mu.Unlock()
		return
	}
	c.value = ev.Tab.URL
	c.mu.Unlock()

	c.bus.Publish(event.Event{Kind: event.KindAddressBarChanged, Value: ev.Tab.URL})
}

// favoriteHaystack adapts favorites to fuzzy.Source, matching on title and
// URL together.
type favoriteHaystack []*entity.Favorite

func (h favoriteHaystack) String(i int) string { return h[i].Title + " " + h[i].URL }
func (h favoriteHaystack) Len() int            { return len(h) }
