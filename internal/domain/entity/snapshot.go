package entity

// Snapshot types are the JSON shapes written through the persistence
// gateway. They deliberately carry less than the live state: per-tab loading
// and navigation flags are runtime facts reported by the rendering surface
// and are not restored.

// TabSnapshot is the persisted subset of a tab.
type TabSnapshot struct {
	ID       TabID  `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Favicon  string `json:"favicon,omitempty"`
	IsPinned bool   `json:"isPinned,omitempty"`
}

// TabsSnapshot checkpoints the tab collection and the active pointer.
type TabsSnapshot struct {
	ActiveTabID TabID         `json:"activeTabId"`
	Tabs        []TabSnapshot `json:"tabs"`
}

// NTPSnapshot checkpoints the new-tab page: favorites in display order and
// the ordered enabled-widget ID list.
type NTPSnapshot struct {
	Favorites      []*Favorite `json:"favorites"`
	EnabledWidgets []string    `json:"enabledWidgets"`
}

// ConversationsSnapshot checkpoints all conversations, messages included.
type ConversationsSnapshot struct {
	ActiveConversationID ConversationID  `json:"activeConversationId,omitempty"`
	Conversations        []*Conversation `json:"conversations"`
}
