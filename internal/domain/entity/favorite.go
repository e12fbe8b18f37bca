package entity

// FavoriteID uniquely identifies a favorite.
type FavoriteID string

// Favorite represents a bookmarked URL on the new-tab page. Slice order is
// the persisted order; reordering is user-controlled.
type Favorite struct {
	ID      FavoriteID `json:"id"`
	Title   string     `json:"title"`
	URL     string     `json:"url"`
	Favicon string     `json:"favicon,omitempty"`
}

// Clone returns a copy of the favorite.
func (f *Favorite) Clone() *Favorite {
	c := *f
	return &c
}
