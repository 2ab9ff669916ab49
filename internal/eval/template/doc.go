// Package template provides a Handlebars template engine for rendering LLM
// prompts: the classification prompt and per-handler system prompts.
//
// Example usage:
//
//	engine := template.NewEngine()
//
//	data := map[string]interface{}{
//	    "query":      "turn on the kitchen light",
//	    "categories": []string{"home", "japanese", "general"},
//	}
//
//	tmpl := "Categories: {{join categories \", \"}}\nQuery: {{query}}"
//	result, err := engine.Render(tmpl, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Built-in helpers:
//   - lowercase - Convert string to lowercase
//   - trim - Trim whitespace from string
//   - default - Return default value if first arg is empty
//   - join - Join list elements with separator
package template
