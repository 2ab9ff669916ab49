// Package cel provides a CEL (Common Expression Language) evaluator for
// deterministic pre-classification rules.
//
// CEL is a non-Turing complete expression language that provides fast, safe
// evaluation of conditions over the incoming query, letting obvious cases
// skip the LLM classification round trip.
//
// Example usage:
//
//	evaluator := cel.NewEvaluator()
//
//	vars := map[string]interface{}{
//	    "query":   "turn on the kitchen light",
//	    "session": "abc123",
//	}
//
//	result, err := evaluator.Evaluate(ctx, "query.contains('turn on')", vars)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	matched := result.(bool) // true
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
package cel
