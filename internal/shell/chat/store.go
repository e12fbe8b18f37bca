// Package chat owns AI conversations and the invocation pipeline that
// streams provider output into them.
package chat

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/marlin/internal/ai"
	"github.com/bnema/marlin/internal/domain/entity"
	"github.com/bnema/marlin/internal/domain/repository"
	"github.com/bnema/marlin/internal/event"
	"github.com/bnema/marlin/internal/ident"
	"github.com/bnema/marlin/internal/logging"
	"github.com/bnema/marlin/internal/shell/tabs"
	"github.com/rs/zerolog"
)

// Store owns the conversation collection, the chat input buffer, and the
// per-conversation streaming tasks. Like the tab store, unknown IDs are
// silent no-ops.
type Store struct {
	mu   sync.Mutex
	log  zerolog.Logger
	ctx  context.Context
	bus  *event.Bus
	ids  ident.Generator
	repo repository.StateRepository
	tabs *tabs.Store

	provider  ai.Provider // nil means unconfigured
	extractor Extractor   // nil means page content is unavailable
	params    Params

	conversations []*entity.Conversation
	activeID      entity.ConversationID
	input         string

	// Streaming bookkeeping. chatLoading is the OR of all in-flight
	// streams; tasks serializes submissions per conversation.
	loadingCount int
	tasks        map[entity.ConversationID]*task
}

type task struct {
	cancel context.CancelFunc
}

// Params tunes provider requests.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Config wires a Store's collaborators. Provider may be nil when no
// credential is configured; the pipeline then answers with a configuration
// notice instead of calling out.
type Config struct {
	Bus       *event.Bus
	IDs       ident.Generator
	Repo      repository.StateRepository
	Tabs      *tabs.Store
	Provider  ai.Provider
	Extractor Extractor
	Params    Params
}

// NewStore creates a Store and restores persisted conversations, if any.
func NewStore(ctx context.Context, cfg Config) *Store {
	ctx = logging.WithComponent(ctx, "chat")
	s := &Store{
		log:           *logging.FromContext(ctx),
		ctx:           ctx,
		bus:           cfg.Bus,
		ids:           cfg.IDs,
		repo:          cfg.Repo,
		tabs:          cfg.Tabs,
		provider:      cfg.Provider,
		extractor:     cfg.Extractor,
		params:        cfg.Params,
		conversations: make([]*entity.Conversation, 0),
		tasks:         make(map[entity.ConversationID]*task),
	}
	s.restore()
	return s
}

// NewConversation creates an empty conversation and makes it active.
func (s *Store) NewConversation(origin entity.OriginatingContext, pageURL string) *entity.Conversation {
	s.mu.Lock()
	conv := s.createLocked(origin, pageURL)
	s.persistLocked()
	snapshot := cloneConversation(conv)
	s.mu.Unlock()

	s.bus.Emit(event.Event{Kind: event.KindConversationCreated, ConversationID: conv.ID})
	return snapshot
}

// SetActiveConversation switches the active pointer. Unknown IDs no-op.
func (s *Store) SetActiveConversation(id entity.ConversationID) {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return
	}
	s.activeID = id
	s.persistLocked()
	s.mu.Unlock()

	s.bus.Publish(event.Event{Kind: event.KindStateChanged})
}

// DeleteConversation removes a conversation, cancelling any in-flight
// stream. The active pointer clears if it pointed at the deleted one.
func (s *Store) DeleteConversation(id entity.ConversationID) {
	s.mu.Lock()
	idx := -1
	for i, conv := range s.conversations {
		if conv.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	if t, ok := s.tasks[id]; ok {
		t.cancel()
		delete(s.tasks, id)
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
	}
	s.persistLocked()
	s.mu.Unlock()

	s.log.Debug().Str("conversation_id", string(id)).Msg("conversation deleted")
	s.bus.Emit(event.Event{Kind: event.KindConversationDeleted, ConversationID: id})
}

// Conversations returns snapshots ordered by most recent activity.
func (s *Store) Conversations() []*entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = cloneConversation(conv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out
}

// ActiveConversation returns a snapshot of the active conversation, or nil.
func (s *Store) ActiveConversation() *entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv := s.findLocked(s.activeID); conv != nil {
		return cloneConversation(conv)
	}
	return nil
}

// SetInput replaces the chat input buffer.
func (s *Store) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
	s.bus.Publish(event.Event{Kind: event.KindChatInputChanged, Value: text})
}

// Input returns the chat input buffer.
func (s *Store) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// IsChatLoading reports whether any provider stream is in flight.
func (s *Store) IsChatLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingCount > 0
}

// Submit turns the current input buffer into a user message on the active
// conversation (created lazily) and launches the provider pipeline. The
// pipeline is not awaited; callers react to message events. Blank input is
// a no-op with no side effects.
func (s *Store) Submit() {
	s.mu.Lock()
	prompt := strings.TrimSpace(s.input)
	if prompt == "" {
		s.mu.Unlock()
		return
	}

	// Originating context: "page" only when the active tab has a real
	// http(s) page open.
	origin := entity.OriginGlobal
	pageURL := ""
	if active := s.tabs.ActiveTab(); active != nil && active.HasPage() {
		origin = entity.OriginPage
		pageURL = active.URL
	}

	created := false
	conv := s.findLocked(s.activeID)
	if conv == nil {
		conv = s.createLocked(origin, pageURL)
		created = true
	}
	convID := conv.ID

	userMsg := &entity.Message{
		ID:        entity.MessageID(s.ids.NewID("msg")),
		Role:      entity.RoleUser,
		Content:   prompt,
		Timestamp: time.Now(),
	}
	conv.Append(userMsg)
	if !conv.HasDerivedTitle() {
		conv.Title = entity.DeriveTitle(prompt)
	}
	s.input = ""
	s.persistLocked()

	// Serialize per conversation: a resubmission cancels the previous
	// in-flight stream.
	if prev, ok := s.tasks[convID]; ok {
		prev.cancel()
	}
	taskCtx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel}
	s.tasks[convID] = t
	s.mu.Unlock()

	if created {
		s.bus.Emit(event.Event{Kind: event.KindConversationCreated, ConversationID: convID})
	}
	s.emitMessage(event.KindMessageAdded, convID, userMsg.ID)

	pageContext := s.extractPageContext(taskCtx)
	tabContext := s.tabs.ContextSnapshot()
	s.bus.Publish(event.Event{
		Kind: event.KindAIInvocation,
		Invocation: &event.Invocation{
			ConversationID: convID,
			Prompt:         prompt,
			Timestamp:      time.Now(),
			PageContext:    pageContext,
			TabContext:     tabContext,
		},
	})

	go s.runPipeline(taskCtx, t, convID, pageContext, tabContext)

	s.bus.Publish(event.Event{Kind: event.KindChatInputChanged, Value: ""})
}

// emitMessage publishes a message event, the conversationUpdated that
// always accompanies it, and the trailing stateChanged.
func (s *Store) emitMessage(kind event.Kind, convID entity.ConversationID, msgID entity.MessageID) {
	s.bus.Publish(event.Event{Kind: kind, ConversationID: convID, MessageID: msgID})
	s.bus.Publish(event.Event{Kind: event.KindConversationUpdated, ConversationID: convID})
	s.bus.Publish(event.Event{Kind: event.KindStateChanged})
}

func (s *Store) createLocked(origin entity.OriginatingContext, pageURL string) *entity.Conversation {
	conv := entity.NewConversation(entity.ConversationID(s.ids.NewID("conv")), origin, pageURL)
	s.conversations = append(s.conversations, conv)
	s.activeID = conv.ID
	s.log.Debug().Str("conversation_id", string(conv.ID)).Str("origin", string(origin)).Msg("conversation created")
	return conv
}

func (s *Store) findLocked(id entity.ConversationID) *entity.Conversation {
	if id == "" {
		return nil
	}
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// persistLocked checkpoints all conversations. Storage failures are
// logged, never propagated.
func (s *Store) persistLocked() {
	snapshot := entity.ConversationsSnapshot{
		ActiveConversationID: s.activeID,
		Conversations:        s.conversations,
	}
	blob, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal conversations snapshot")
		return
	}
	if err := s.repo.Set(s.ctx, repository.KeyConversations, blob); err != nil {
		s.log.Error().Err(err).Msg("failed to persist conversations snapshot")
	}
}

// restore loads persisted conversations. Streaming flags are transient and
// cleared on load; unparseable blobs are treated as absent.
func (s *Store) restore() {
	blob, err := s.repo.Get(s.ctx, repository.KeyConversations)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read conversations snapshot")
		return
	}
	if len(blob) == 0 {
		return
	}

	var snapshot entity.ConversationsSnapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		s.log.Warn().Err(err).Msg("corrupt conversations snapshot, starting empty")
		return
	}

	for _, conv := range snapshot.Conversations {
		if conv == nil || conv.ID == "" {
			continue
		}
		for _, msg := range conv.Messages {
			msg.IsStreaming = false
		}
		s.conversations = append(s.conversations, conv)
	}
	if s.findLocked(snapshot.ActiveConversationID) != nil {
		s.activeID = snapshot.ActiveConversationID
	}
	s.log.Info().Int("conversations", len(s.conversations)).Msg("conversations restored from snapshot")
}

func cloneConversation(conv *entity.Conversation) *entity.Conversation {
	c := *conv
	c.Messages = make([]*entity.Message, len(conv.Messages))
	for i, msg := range conv.Messages {
		m := *msg
		c.Messages[i] = &m
	}
	return &c
}
