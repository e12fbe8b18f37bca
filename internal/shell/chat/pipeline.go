package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/marlin/internal/ai"
	"github.com/bnema/marlin/internal/domain/entity"
	"github.com/bnema/marlin/internal/event"
)

const systemPreamble = "You are a browsing assistant embedded in the Marlin browser. " +
	"Answer concisely. When page or tab context is provided, ground your answers in it."

const noProviderNotice = "No AI provider is configured. Set an API key in the " +
	"config file or the MARLIN_AI_API_KEY environment variable to enable chat."

// runPipeline streams one assistant response into the conversation. It runs
// unawaited; all effects surface through message events. With no provider
// configured it answers with a configuration notice and never flips the
// loading flag.
func (s *Store) runPipeline(ctx context.Context, t *task, convID entity.ConversationID, page *event.PageContext, tabCtx []event.TabContext) {
	defer s.finishTask(convID, t)

	if s.provider == nil {
		s.appendAssistant(convID, noProviderNotice, false)
		return
	}

	s.setLoading(true)
	defer s.setLoading(false)

	placeholderID := s.addPlaceholder(convID)
	if placeholderID == "" {
		return
	}

	req := s.buildRequest(convID, placeholderID, page, tabCtx)
	stream, err := s.provider.Stream(ctx, req)
	if err != nil {
		s.failPlaceholder(convID, placeholderID, err)
		return
	}

	var content strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			if errors.Is(chunk.Err, context.Canceled) {
				s.settlePlaceholder(convID, placeholderID)
				return
			}
			s.failPlaceholder(convID, placeholderID, chunk.Err)
			return
		}
		if chunk.Content == "" {
			continue
		}
		content.WriteString(chunk.Content)
		s.updatePlaceholder(convID, placeholderID, content.String(), true)
	}

	if ctx.Err() != nil {
		// Cancelled mid-stream: keep the partial content, just clear the
		// streaming flag.
		s.settlePlaceholder(convID, placeholderID)
		return
	}
	s.updatePlaceholder(convID, placeholderID, content.String(), false)
}

// buildRequest assembles the provider request: the system preamble, the
// optional page block, the open-tabs block, and the full message history
// excluding the streaming placeholder.
func (s *Store) buildRequest(convID entity.ConversationID, placeholderID entity.MessageID, page *event.PageContext, tabCtx []event.TabContext) ai.Request {
	msgs := []ai.Message{{Role: ai.RoleSystem, Content: systemPreamble}}

	if page != nil {
		var b strings.Builder
		if page.Restricted {
			fmt.Fprintf(&b, "The user's current page (%s) could not be read: its content is restricted.", page.URL)
		} else {
			fmt.Fprintf(&b, "The user's current page:\nURL: %s\nTitle: %s\n\n%s", page.URL, page.Title, page.Content)
		}
		msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: b.String()})
	}

	if len(tabCtx) > 0 {
		var b strings.Builder
		b.WriteString("Open tabs:\n")
		for _, tc := range tabCtx {
			marker := "-"
			if tc.Active {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %s (%s)\n", marker, tc.Title, tc.URL)
		}
		msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: b.String()})
	}

	s.mu.Lock()
	if conv := s.findLocked(convID); conv != nil {
		for _, m := range conv.Messages {
			if m.ID == placeholderID {
				continue
			}
			msgs = append(msgs, ai.Message{Role: ai.Role(m.Role), Content: m.Content})
		}
	}
	s.mu.Unlock()

	return ai.Request{
		Model:       s.params.Model,
		Messages:    msgs,
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
	}
}

// addPlaceholder appends the empty streaming assistant message. Returns ""
// if the conversation vanished in the meantime.
func (s *Store) addPlaceholder(convID entity.ConversationID) entity.MessageID {
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return ""
	}
	msg := &entity.Message{
		ID:          entity.MessageID(s.ids.NewID("msg")),
		Role:        entity.RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
	conv.Append(msg)
	s.persistLocked()
	s.mu.Unlock()

	s.emitMessage(event.KindMessageAdded, convID, msg.ID)
	return msg.ID
}

// updatePlaceholder replaces the placeholder's content with the cumulative
// stream so far, clearing the streaming flag on the final call.
func (s *Store) updatePlaceholder(convID entity.ConversationID, msgID entity.MessageID, content string, streaming bool) {
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	msg := conv.FindMessage(msgID)
	if msg == nil {
		s.mu.Unlock()
		return
	}
	msg.Content = content
	msg.IsStreaming = streaming
	conv.Touch()
	s.persistLocked()
	s.mu.Unlock()

	s.emitMessage(event.KindMessageUpdated, convID, msgID)
}

// settlePlaceholder clears the streaming flag, keeping whatever content has
// accumulated.
func (s *Store) settlePlaceholder(convID entity.ConversationID, msgID entity.MessageID) {
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	msg := conv.FindMessage(msgID)
	if msg == nil || !msg.IsStreaming {
		s.mu.Unlock()
		return
	}
	msg.IsStreaming = false
	conv.Touch()
	s.persistLocked()
	s.mu.Unlock()

	s.emitMessage(event.KindMessageUpdated, convID, msgID)
}

// failPlaceholder converts the placeholder into an in-band error message.
func (s *Store) failPlaceholder(convID entity.ConversationID, msgID entity.MessageID, cause error) {
	s.log.Error().Err(cause).Str("conversation_id", string(convID)).Msg("ai stream failed")
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	msg := conv.FindMessage(msgID)
	if msg == nil {
		s.mu.Unlock()
		return
	}
	msg.Content = "Something went wrong: " + cause.Error()
	msg.IsStreaming = false
	msg.IsError = true
	conv.Touch()
	s.persistLocked()
	s.mu.Unlock()

	s.emitMessage(event.KindMessageUpdated, convID, msgID)
}

// appendAssistant appends a complete (non-streamed) assistant message.
func (s *Store) appendAssistant(convID entity.ConversationID, content string, isError bool) {
	s.mu.Lock()
	conv := s.findLocked(convID)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	msg := &entity.Message{
		ID:        entity.MessageID(s.ids.NewID("msg")),
		Role:      entity.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		IsError:   isError,
	}
	conv.Append(msg)
	s.persistLocked()
	s.mu.Unlock()

	s.emitMessage(event.KindMessageAdded, convID, msg.ID)
}

// setLoading adjusts the global loading counter and publishes transitions.
func (s *Store) setLoading(on bool) {
	s.mu.Lock()
	var flipped bool
	if on {
		s.loadingCount++
		flipped = s.loadingCount == 1
	} else {
		s.loadingCount--
		flipped = s.loadingCount == 0
	}
	s.mu.Unlock()

	if flipped {
		s.bus.Publish(event.Event{Kind: event.KindChatLoadingChanged, IsLoading: on})
		s.bus.Publish(event.Event{Kind: event.KindStateChanged})
	}
}

// finishTask removes the task handle unless a newer submission replaced it.
func (s *Store) finishTask(convID entity.ConversationID, t *task) {
	s.mu.Lock()
	if cur, ok := s.tasks[convID]; ok && cur == t {
		delete(s.tasks, convID)
	}
	s.mu.Unlock()
}
