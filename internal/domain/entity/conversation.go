package entity

import (
	"strings"
	"time"
)

// ConversationID uniquely identifies a conversation.
type ConversationID string

// MessageID uniquely identifies a message within a conversation.
type MessageID string

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// OriginatingContext classifies what triggered a conversation.
type OriginatingContext string

const (
	OriginGlobal OriginatingContext = "global"
	OriginPage   OriginatingContext = "page"
	OriginTab    OriginatingContext = "tab"
)

// DefaultConversationTitle is the placeholder title before the first user
// message derives a real one.
const DefaultConversationTitle = "New conversation"

// titleMaxRunes bounds auto-derived conversation titles.
const titleMaxRunes = 50

// Message is one turn in a conversation. Content is mutated in place while
// an assistant response streams; once IsStreaming is false the content is
// final. Role never changes after creation.
type Message struct {
	ID        MessageID      `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Transient; carry no meaning after stream completion.
	IsStreaming bool `json:"isStreaming,omitempty"`
	IsError     bool `json:"isError,omitempty"`
}

// Conversation is an AI chat thread, independent of tab lifetime. Message
// order is append-only and LastUpdated increases on every append or
// mutation.
type Conversation struct {
	ID          ConversationID     `json:"id"`
	Title       string             `json:"title"`
	CreatedAt   time.Time          `json:"createdAt"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Messages    []*Message         `json:"messages"`
	Origin      OriginatingContext `json:"originatingContext"`
	PageURL     string             `json:"pageUrl,omitempty"`
}

// NewConversation creates an empty conversation with the placeholder title.
func NewConversation(id ConversationID, origin OriginatingContext, pageURL string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:          id,
		Title:       DefaultConversationTitle,
		CreatedAt:   now,
		LastUpdated: now,
		Messages:    make([]*Message, 0),
		Origin:      origin,
		PageURL:     pageURL,
	}
}

// Append adds a message and bumps LastUpdated.
func (c *Conversation) Append(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.Touch()
}

// Touch bumps LastUpdated, keeping it monotonic even when the wall clock
// stalls within timer resolution.
func (c *Conversation) Touch() {
	now := time.Now()
	if !now.After(c.LastUpdated) {
		now = c.LastUpdated.Add(time.Nanosecond)
	}
	c.LastUpdated = now
}

// FindMessage returns the message with the given ID, or nil.
func (c *Conversation) FindMessage(id MessageID) *Message {
	for _, m := range c.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// HasDerivedTitle reports whether the title has moved past the placeholder.
func (c *Conversation) HasDerivedTitle() bool {
	return c.Title != "" && c.Title != DefaultConversationTitle
}

// DeriveTitle truncates the first user message into a display title:
// at most 50 runes, with an ellipsis when cut.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}

func hasHTTPScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
