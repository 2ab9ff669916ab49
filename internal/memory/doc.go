// Package memory implements per-conversation memory: ordered turn records
// keyed by (session, category) or by category alone for shared handlers.
//
// Two implementations are provided: an in-process store with per-key
// locking, and a Redis-list-backed store for deployments where
// conversations must survive the process.
//
// Example usage:
//
//	store := memory.NewInMemoryStore()
//
//	key, ok := memory.KeyFor(registry.MemoryPerSession, sessionID, "home")
//	if ok {
//	    _ = store.Append(ctx, key,
//	        memory.Turn{Role: "user", Content: "turn on the kitchen light"},
//	        memory.Turn{Role: "assistant", Content: "Kitchen light turned on."},
//	    )
//	}
//
// Growth is unbounded unless the caller applies a retention policy through
// Evict or the Redis store's TTL.
package memory
