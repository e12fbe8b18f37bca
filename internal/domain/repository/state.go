// Package repository defines persistence interfaces implemented by the
// infrastructure layer.
package repository

import "context"

// StateRepository is a flat key-value blob store used to checkpoint shell
// state (tabs, new-tab page, conversations). Get returns (nil, nil) when the
// key has never been written.
type StateRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
}

// Keys used by the shell stores.
const (
	KeyTabs          = "tabs"
	KeyNTP           = "ntp"
	KeyConversations = "conversations"
)
