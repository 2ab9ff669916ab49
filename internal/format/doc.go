// Package format composes the user-visible payload for a routed turn: the
// handler's response alongside classification metadata, with degraded
// results explicitly marked. Formatting is deterministic and side-effect
// free.
package format
