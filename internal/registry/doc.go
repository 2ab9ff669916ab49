// Package registry holds the typed handler table: one descriptor per query
// category plus a designated default, loaded from a YAML document and
// validated once at startup.
//
// Example registry document:
//
//	default: general
//	rules:
//	  - condition: "query.contains('turn on') || query.contains('turn off')"
//	    category: home
//	handlers:
//	  - category: home
//	    system_prompt: "You are a smart home assistant..."
//	    model: qwen2.5:7b
//	    temperature: 0.3
//	    memory_policy: per_session
//	  - category: general
//	    system_prompt: "You are a knowledgeable general assistant..."
//	    model: qwen2.5:7b
//	    temperature: 0.7
//	    memory_policy: per_session
//
// Validation failures are configuration errors and abort startup, so
// Resolve never fails at request time: unknown categories collapse to the
// default descriptor.
package registry
