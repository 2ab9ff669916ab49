// Package router implements the orchestration core: the state machine that
// takes one query through classification, handler dispatch, response
// streaming and memory recording.
//
// A turn moves RECEIVED -> CLASSIFYING -> DISPATCHING -> STREAMING ->
// COMPLETED, with ERRORED reachable from any non-terminal state. The design
// favors availability over precision:
//
//   - Classification failures resolve to the default category; they never
//     fail the turn.
//   - Low classification confidence is logged, never gating. The threshold
//     is an explicit, overridable config field.
//   - A mid-stream handler failure flushes the tokens already produced,
//     appends an explicit degradation notice, and returns a partial result
//     rather than discarding output.
//   - Memory store failures are logged and the turn proceeds without
//     persistence.
//
// Only invalid input (empty query text) surfaces as an immediate error.
//
// Example usage:
//
//	rt := router.New(reg, classifier, client, store, templates, logger, router.Config{
//	    HandlerTimeout: 2 * time.Minute,
//	})
//
//	result, err := rt.Route(ctx, router.Query{
//	    Text:      "Turn on the kitchen light",
//	    SessionID: sessionID,
//	}, func(token string) { fmt.Print(token) })
package router
