// Package ai abstracts streaming completion providers behind a single
// interface. Two wire formats exist upstream (OpenAI chat-completion deltas
// and Anthropic content-block deltas); both are adapted to the same chunk
// stream so the chat pipeline never sees provider specifics.
package ai

import (
	"context"
	"errors"
)

// ErrNoCredential indicates no API key is configured for the selected
// provider. The chat pipeline converts this into an in-band assistant
// message rather than surfacing an error.
var ErrNoCredential = errors.New("ai: no API key configured")

// Role mirrors the chat roles providers accept.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of provider input.
type Message struct {
	Role    Role
	Content string
}

// Request describes one completion call.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Chunk is one unit of streamed provider output. Content carries an
// incremental text fragment; Err carries a stream-time failure. The channel
// closing signals end-of-stream.
type Chunk struct {
	Content string
	Err     error
}

// Provider streams completions.
//
// The returned channel emits content chunks as the provider produces them
// and is closed when the stream ends. Stream-time errors arrive as a final
// chunk with Err set. An error return means streaming could not be
// initiated at all.
type Provider interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
	Model() string
}
