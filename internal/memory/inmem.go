package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps conversations in process memory. Each key owns its
// own lock, so concurrent turns on unrelated conversations never contend.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*conversation
}

type conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[Key]*conversation),
	}
}

// Get returns a copy of the turns recorded for key, oldest first. An absent
// key yields an empty sequence.
func (s *InMemoryStore) Get(ctx context.Context, key Key) ([]Turn, error) {
	s.mu.RLock()
	conv, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	out := make([]Turn, len(conv.turns))
	copy(out, conv.turns)
	return out, nil
}

// Append records turns at the end of the conversation for key, creating the
// conversation lazily on first use.
func (s *InMemoryStore) Append(ctx context.Context, key Key, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	conv := s.conversationFor(key)

	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.turns = append(conv.turns, turns...)
	return nil
}

// Evict discards the conversation for key.
func (s *InMemoryStore) Evict(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *InMemoryStore) conversationFor(key Key) *conversation {
	s.mu.RLock()
	conv, ok := s.entries[key]
	s.mu.RUnlock()

	if ok {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again in case another goroutine created it
	if conv, ok := s.entries[key]; ok {
		return conv
	}

	conv = &conversation{}
	s.entries[key] = conv
	return conv
}
