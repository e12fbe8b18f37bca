// Package event provides the typed in-process event bus that all shell
// components communicate through.
package event

import (
	"time"

	"github.com/bnema/marlin/internal/domain/entity"
)

// Kind identifies the type of event published on the bus.
type Kind string

const (
	KindTabAdded            Kind = "tabAdded"            // a tab was created
	KindTabRemoved          Kind = "tabRemoved"          // a tab was destroyed; the reconciler tears down its surface
	KindTabUpdated          Kind = "tabUpdated"          // tab attributes changed (URL changes trigger navigation)
	KindActiveTabChanged    Kind = "activeTabChanged"    // the visible tab switched (never re-navigates)
	KindLoadingStateChanged Kind = "loadingStateChanged" // per-tab loading flag flipped
	KindAddressBarChanged   Kind = "addressBarChanged"   // the edit buffer changed
	KindAddressBarCommitted Kind = "addressBarCommitted" // an edit was committed into the active tab
	KindChatInputChanged    Kind = "chatInputChanged"    // the chat input buffer changed
	KindChatLoadingChanged  Kind = "chatLoadingChanged"  // the global chat-loading flag flipped
	KindConversationCreated Kind = "conversationCreated" // a conversation came into existence
	KindConversationUpdated Kind = "conversationUpdated" // conversation metadata or content changed
	KindConversationDeleted Kind = "conversationDeleted" // a conversation was removed
	KindMessageAdded        Kind = "messageAdded"        // a message was appended to a conversation
	KindMessageUpdated      Kind = "messageUpdated"      // a message's content or flags changed
	KindAIInvocation        Kind = "aiInvocation"        // a chat prompt was submitted to the pipeline
	KindNTPUpdated          Kind = "ntpUpdated"          // favorites or widget enablement changed
	KindStateChanged        Kind = "stateChanged"        // generic: follows every specific mutation event
)

// TabContext is one entry of the open-tabs snapshot handed to the AI
// pipeline.
type TabContext struct {
	ID     entity.TabID `json:"id"`
	Title  string       `json:"title"`
	URL    string       `json:"url"`
	Active bool         `json:"active"`
}

// Invocation carries the observability payload of an aiInvocation event.
type Invocation struct {
	ConversationID entity.ConversationID
	Prompt         string
	Timestamp      time.Time
	PageContext    *PageContext
	TabContext     []TabContext
}

// PageContext is the extracted content of the active page, handed to the AI
// pipeline. Restricted marks cross-origin extraction failures; Content is
// empty in that case.
type PageContext struct {
	URL        string
	Title      string
	Content    string
	Restricted bool
}

// Event is the single payload type published on the bus. Kind determines
// which fields are populated.
type Event struct {
	Kind Kind

	// Tab events
	TabID       entity.TabID
	Tab         *entity.Tab // snapshot, safe to retain
	IsActiveTab bool
	IsLoading   bool

	// Address bar / chat input events
	Value string
	URL   string

	// Conversation events
	ConversationID entity.ConversationID
	MessageID      entity.MessageID

	// aiInvocation events
	Invocation *Invocation
}
