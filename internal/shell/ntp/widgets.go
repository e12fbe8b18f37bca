package ntp

import (
	"strings"
	"time"

	"github.com/bnema/marlin/internal/domain/entity"
)

// recentConversationLimit bounds the recent-conversations widget body.
const recentConversationLimit = 5

// ConversationSource supplies conversations ordered by recency. The chat
// store satisfies it.
type ConversationSource interface {
	Conversations() []*entity.Conversation
}

// ClockWidget renders the current local time. now is injectable for tests;
// pass nil for the wall clock.
func ClockWidget(now func() time.Time) entity.Widget {
	if now == nil {
		now = time.Now
	}
	return entity.Widget{
		ID:    "clock",
		Title: "Clock",
		Render: func(c entity.Container) error {
			t := now()
			c.SetTitle(t.Format("15:04"))
			c.SetBody(t.Format("Monday, January 2"))
			return nil
		},
	}
}

// RecentConversationsWidget lists the most recently active conversations.
func RecentConversationsWidget(src ConversationSource) entity.Widget {
	return entity.Widget{
		ID:    "recent-conversations",
		Title: "Recent conversations",
		Render: func(c entity.Container) error {
			c.SetTitle("Recent conversations")
			convs := src.Conversations()
			if len(convs) == 0 {
				c.SetBody("No conversations yet")
				return nil
			}
			if len(convs) > recentConversationLimit {
				convs = convs[:recentConversationLimit]
			}
			lines := make([]string, 0, len(convs))
			for _, conv := range convs {
				lines = append(lines, conv.Title)
			}
			c.SetBody(strings.Join(lines, "\n"))
			return nil
		},
	}
}
