package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category identifies one of the closed set of query domains.
type Category string

// MemoryPolicy controls how conversational memory is keyed for a handler.
type MemoryPolicy string

const (
	// MemoryNone disables conversational memory for the handler.
	MemoryNone MemoryPolicy = "none"

	// MemoryPerSession keys memory by (session, category).
	MemoryPerSession MemoryPolicy = "per_session"

	// MemoryShared keys memory by category alone, across all sessions.
	MemoryShared MemoryPolicy = "shared"
)

// Descriptor is the static configuration of one domain handler.
type Descriptor struct {
	Category     Category     `yaml:"category"`
	SystemPrompt string       `yaml:"system_prompt"`
	Model        string       `yaml:"model"`
	Temperature  float32      `yaml:"temperature"`
	MaxTokens    int          `yaml:"max_tokens"`
	Tools        []string     `yaml:"tools"`
	MemoryPolicy MemoryPolicy `yaml:"memory_policy"`
}

// Rule is a deterministic pre-classification rule: a CEL condition over the
// query and the category selected when it matches.
type Rule struct {
	Condition string   `yaml:"condition"`
	Category  Category `yaml:"category"`
}

// File is the on-disk shape of a registry document.
type File struct {
	Default          Category     `yaml:"default"`
	ClassifierPrompt string       `yaml:"classifier_prompt"`
	Rules            []Rule       `yaml:"rules"`
	Handlers         []Descriptor `yaml:"handlers"`
}

// Registry is the validated, immutable handler table. It is built once at
// startup; Resolve never fails afterwards.
type Registry struct {
	byCategory       map[Category]Descriptor
	categories       []Category
	defaultCategory  Category
	classifierPrompt string
	rules            []Rule
}

// Load reads and validates a registry document from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	return New(f)
}

// New validates a registry document and builds the handler table. Any
// inconsistency here is a configuration error and must abort startup.
func New(f File) (*Registry, error) {
	if len(f.Handlers) == 0 {
		return nil, fmt.Errorf("registry requires at least one handler")
	}
	if f.Default == "" {
		return nil, fmt.Errorf("default category is required")
	}

	byCategory := make(map[Category]Descriptor, len(f.Handlers))
	categories := make([]Category, 0, len(f.Handlers))

	for i, h := range f.Handlers {
		if err := validateDescriptor(h); err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		if _, exists := byCategory[h.Category]; exists {
			return nil, fmt.Errorf("handler %d: duplicate category %q", i, h.Category)
		}
		byCategory[h.Category] = h
		categories = append(categories, h.Category)
	}

	if _, ok := byCategory[f.Default]; !ok {
		return nil, fmt.Errorf("default category %q has no handler", f.Default)
	}

	for i, rule := range f.Rules {
		if rule.Condition == "" {
			return nil, fmt.Errorf("rule %d: condition is required", i)
		}
		if _, ok := byCategory[rule.Category]; !ok {
			return nil, fmt.Errorf("rule %d: category %q has no handler", i, rule.Category)
		}
	}

	return &Registry{
		byCategory:       byCategory,
		categories:       categories,
		defaultCategory:  f.Default,
		classifierPrompt: f.ClassifierPrompt,
		rules:            f.Rules,
	}, nil
}

func validateDescriptor(h Descriptor) error {
	if h.Category == "" {
		return fmt.Errorf("category is required")
	}
	if h.SystemPrompt == "" {
		return fmt.Errorf("system_prompt is required")
	}
	if h.Model == "" {
		return fmt.Errorf("model is required")
	}
	if h.Temperature < 0 || h.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if h.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}

	switch h.MemoryPolicy {
	case MemoryNone, MemoryPerSession, MemoryShared:
	case "":
		return fmt.Errorf("memory_policy is required")
	default:
		return fmt.Errorf("unknown memory_policy %q", h.MemoryPolicy)
	}

	for i, tool := range h.Tools {
		if tool == "" {
			return fmt.Errorf("tool %d: capability id is empty", i)
		}
	}

	return nil
}

// Resolve returns the descriptor for category, or the default descriptor
// when the category is unknown. This is the single point where an unknown
// category is normalized; downstream code always holds a valid descriptor.
func (r *Registry) Resolve(category Category) Descriptor {
	if d, ok := r.byCategory[category]; ok {
		return d
	}
	return r.byCategory[r.defaultCategory]
}

// Known reports whether category has its own handler.
func (r *Registry) Known(category Category) bool {
	_, ok := r.byCategory[category]
	return ok
}

// Categories returns the known categories in declaration order.
func (r *Registry) Categories() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Default returns the designated fallback category.
func (r *Registry) Default() Category {
	return r.defaultCategory
}

// ClassifierPrompt returns the configured classification prompt template,
// or "" when the classifier's built-in template should be used.
func (r *Registry) ClassifierPrompt() string {
	return r.classifierPrompt
}

// Rules returns the deterministic pre-classification rules in order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}
