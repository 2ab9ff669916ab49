// Package llm defines the outbound port to completion services and an
// adapter for OpenAI-compatible endpoints.
//
// Two request shapes are supported: a blocking completion (used for
// structured classification, optionally constrained to JSON output) and a
// streaming completion that delivers tokens on a channel as they arrive.
//
// Example usage:
//
//	client := llm.NewOpenAIClient("http://localhost:11434/v1", "ollama", logger)
//
//	text, err := client.Complete(ctx, []llm.Message{
//	    {Role: llm.RoleUser, Content: "classify this"},
//	}, llm.Params{Model: "qwen2.5:7b", Temperature: 0.1, JSONOnly: true})
//
//	stream, err := client.StreamComplete(ctx, messages, params)
//	for token := range stream.Tokens() {
//	    fmt.Print(token)
//	}
//	if err := stream.Err(); err != nil {
//	    // stream ended early
//	}
//
// Clients never retry; the caller owns retry and timeout policy.
package llm
