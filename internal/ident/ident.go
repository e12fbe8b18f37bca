// Package ident generates opaque unique identifiers for tabs, messages,
// conversations, and favorites.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique IDs. The kind argument becomes a readable
// prefix ("tab", "conv", "msg", "fav") so IDs are self-describing in logs
// and snapshots.
type Generator interface {
	NewID(kind string) string
}

type uuidGenerator struct{}

// NewGenerator returns the production UUID-backed generator.
func NewGenerator() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID(kind string) string {
	return kind + "-" + uuid.NewString()
}

// SequenceGenerator produces deterministic IDs for tests: kind-1, kind-2, …
type SequenceGenerator struct {
	mu      sync.Mutex
	counter int
}

// NewSequenceGenerator returns a counter-based generator.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

func (g *SequenceGenerator) NewID(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", kind, g.counter)
}
