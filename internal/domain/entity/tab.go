package entity

// TabID uniquely identifies a tab.
type TabID string

// DefaultTabTitle is the title given to tabs created without one.
const DefaultTabTitle = "New tab"

// Tab represents one navigable browsing unit. Each tab is backed by its own
// rendering surface, owned by the reconciler and addressed by tab ID.
// An empty URL means no page is loaded and the new-tab page is shown.
type Tab struct {
	ID           TabID
	Title        string
	URL          string
	Favicon      string // symbolic icon key, empty = none
	IsPinned     bool
	IsLoading    bool
	CanGoBack    bool
	CanGoForward bool

	// Reserved for in-tab history; no operation consumes these yet.
	History      []string
	HistoryIndex int
}

// NewTab creates a tab with the default title. The ID never changes after
// creation.
func NewTab(id TabID) *Tab {
	return &Tab{
		ID:           id,
		Title:        DefaultTabTitle,
		HistoryIndex: -1,
	}
}

// Clone returns a deep copy of the tab.
func (t *Tab) Clone() *Tab {
	c := *t
	if t.History != nil {
		c.History = append([]string(nil), t.History...)
	}
	return &c
}

// HasPage reports whether the tab has an http(s) page loaded.
func (t *Tab) HasPage() bool {
	return hasHTTPScheme(t.URL)
}
