package memory

import (
	"context"
	"fmt"

	"github.com/mjallday/switchboard/internal/registry"
)

// Turn is one role/content record in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Key addresses one conversation. SessionID is empty for shared memory.
type Key struct {
	SessionID string
	Category  registry.Category
}

func (k Key) String() string {
	if k.SessionID == "" {
		return fmt.Sprintf("conv:%s", k.Category)
	}
	return fmt.Sprintf("conv:%s:%s", k.SessionID, k.Category)
}

// KeyFor derives the memory key for a handler's memory policy. The second
// return value is false when the policy disables memory.
func KeyFor(policy registry.MemoryPolicy, sessionID string, category registry.Category) (Key, bool) {
	switch policy {
	case registry.MemoryPerSession:
		return Key{SessionID: sessionID, Category: category}, true
	case registry.MemoryShared:
		return Key{Category: category}, true
	default:
		return Key{}, false
	}
}

// Store is the conversation memory contract. Append is the only mutator and
// is ordered and monotonic per key; Get on an absent key returns an empty
// sequence; Evict is the explicit eviction hook for external retention
// policy (session termination, TTL).
//
// Implementations must serialize access per key. Unrelated keys must not
// block each other.
type Store interface {
	Get(ctx context.Context, key Key) ([]Turn, error)
	Append(ctx context.Context, key Key, turns ...Turn) error
	Evict(ctx context.Context, key Key) error
}
