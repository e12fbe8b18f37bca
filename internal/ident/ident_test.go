package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUIDGeneratorUnique(t *testing.T) {
	gen := NewGenerator()

	seen := make(map[string]bool)
	for range 100 {
		id := gen.NewID("tab")
		assert.True(t, strings.HasPrefix(id, "tab-"))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator()
	assert.Equal(t, "tab-1", gen.NewID("tab"))
	assert.Equal(t, "conv-2", gen.NewID("conv"))
	assert.Equal(t, "tab-3", gen.NewID("tab"))
}
