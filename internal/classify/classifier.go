package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mjallday/switchboard/internal/eval/cel"
	"github.com/mjallday/switchboard/internal/eval/template"
	"github.com/mjallday/switchboard/internal/llm"
	"github.com/mjallday/switchboard/internal/registry"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned when the query text is empty after trimming.
var ErrEmptyQuery = errors.New("query text is empty")

// ReasonClassificationFailed is the reasoning recorded when every
// classification attempt is exhausted and the default category is used.
const ReasonClassificationFailed = "classification_failed"

// DefaultPromptTemplate is the built-in classification prompt, used when
// the registry does not configure one.
const DefaultPromptTemplate = `You are a query classifier that determines which specialized assistant should handle a user's question.

Classify queries into exactly one of these categories: {{join categories ", "}}.

Provide a confidence score (0.0 to 1.0) and brief reasoning for your classification.

Query: {{query}}

Respond with a JSON object containing "category", "confidence" and "reasoning".`

// Classification is the outcome of classifying one query. Category is
// always a member of the registry's known set.
type Classification struct {
	Category   registry.Category `json:"category"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
}

// Config holds classifier tuning. Temperature is deliberately low so that
// identical queries classify identically with high probability.
type Config struct {
	Model       string
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
}

// Classifier turns raw query text into a Classification using deterministic
// fast rules first and one structured completion call otherwise.
type Classifier struct {
	reg       *registry.Registry
	client    llm.Client
	evaluator *cel.Evaluator
	templates *template.Engine
	logger    *zap.Logger
	cfg       Config
}

// New creates a classifier and validates the registry's fast rules. Rule
// conditions that do not compile to a boolean are configuration errors.
func New(reg *registry.Registry, client llm.Client, templates *template.Engine, logger *zap.Logger, cfg Config) (*Classifier, error) {
	evaluator := cel.NewEvaluator()

	for i, rule := range reg.Rules() {
		if err := evaluator.ValidateExpression(rule.Condition); err != nil {
			return nil, fmt.Errorf("rule %d: invalid condition: %w", i, err)
		}
	}

	prompt := reg.ClassifierPrompt()
	if prompt == "" {
		prompt = DefaultPromptTemplate
	}
	if err := templates.ValidateTemplate(prompt); err != nil {
		return nil, fmt.Errorf("invalid classifier prompt template: %w", err)
	}

	return &Classifier{
		reg:       reg,
		client:    client,
		evaluator: evaluator,
		templates: templates,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// Classify resolves queryText to a known category. It never hard-fails on
// upstream trouble: exhausted retries and timeouts resolve to the registry's
// default category with confidence 0.0. The only error condition is empty
// input.
func (c *Classifier) Classify(ctx context.Context, queryText string) (Classification, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return Classification{}, ErrEmptyQuery
	}

	if cls, ok := c.matchRules(ctx, queryText); ok {
		return cls, nil
	}

	return c.classifyLLM(ctx, queryText), nil
}

// matchRules evaluates the registry's fast rules in order. Rule evaluation
// errors skip to the next rule, matching nothing in the worst case.
func (c *Classifier) matchRules(ctx context.Context, queryText string) (Classification, bool) {
	vars := map[string]interface{}{
		"query":   queryText,
		"session": "",
	}

	for i, rule := range c.reg.Rules() {
		result, err := c.evaluator.Evaluate(ctx, rule.Condition, vars)
		if err != nil {
			c.logger.Warn("rule evaluation error",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Error(err),
			)
			continue
		}

		matched, ok := result.(bool)
		if !ok || !matched {
			continue
		}

		c.logger.Info("fast rule matched",
			zap.Int("rule_index", i),
			zap.String("condition", rule.Condition),
			zap.String("category", string(rule.Category)),
		)

		return Classification{
			Category:   rule.Category,
			Confidence: 1.0,
			Reasoning:  fmt.Sprintf("matched rule %d: %s", i, rule.Condition),
		}, true
	}

	return Classification{}, false
}

// classifyLLM issues the structured completion call with bounded retries.
func (c *Classifier) classifyLLM(ctx context.Context, queryText string) Classification {
	prompt, err := c.renderPrompt(queryText)
	if err != nil {
		c.logger.Error("failed to render classification prompt", zap.Error(err))
		return c.fallback()
	}

	params := llm.Params{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		JSONOnly:    true,
	}
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return c.fallback()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		cls, err := c.attempt(ctx, messages, params)
		if err != nil {
			c.logger.Warn("classification attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		return cls
	}

	c.logger.Warn("classification attempts exhausted, using default category",
		zap.String("default", string(c.reg.Default())),
	)
	return c.fallback()
}

func (c *Classifier) attempt(ctx context.Context, messages []llm.Message, params llm.Params) (Classification, error) {
	attemptCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	response, err := c.client.Complete(attemptCtx, messages, params)
	if err != nil {
		return Classification{}, err
	}

	var cls Classification
	if err := json.Unmarshal([]byte(stripFences(response)), &cls); err != nil {
		return Classification{}, fmt.Errorf("unparseable classification response: %w", err)
	}

	category, ok := c.coerceCategory(string(cls.Category))
	if !ok {
		return Classification{}, fmt.Errorf("category %q is not in the known set", cls.Category)
	}
	cls.Category = category

	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}

	return cls, nil
}

func (c *Classifier) renderPrompt(queryText string) (string, error) {
	prompt := c.reg.ClassifierPrompt()
	if prompt == "" {
		prompt = DefaultPromptTemplate
	}

	categories := make([]string, 0, len(c.reg.Categories()))
	for _, cat := range c.reg.Categories() {
		categories = append(categories, string(cat))
	}

	return c.templates.Render(prompt, map[string]interface{}{
		"query":      queryText,
		"categories": categories,
		"default":    string(c.reg.Default()),
	})
}

// coerceCategory matches a raw model answer to a known category: exact
// match first, then case-insensitive, then substring.
func (c *Classifier) coerceCategory(raw string) (registry.Category, bool) {
	normalized := strings.TrimSpace(strings.ToLower(raw))
	if normalized == "" {
		return "", false
	}

	if c.reg.Known(registry.Category(normalized)) {
		return registry.Category(normalized), true
	}

	for _, cat := range c.reg.Categories() {
		if strings.EqualFold(string(cat), normalized) {
			return cat, true
		}
	}

	for _, cat := range c.reg.Categories() {
		if strings.Contains(normalized, strings.ToLower(string(cat))) {
			c.logger.Debug("matched category by partial match",
				zap.String("response", raw),
				zap.String("matched_category", string(cat)),
			)
			return cat, true
		}
	}

	return "", false
}

func (c *Classifier) fallback() Classification {
	return Classification{
		Category:   c.reg.Default(),
		Confidence: 0.0,
		Reasoning:  ReasonClassificationFailed,
	}
}

// stripFences removes a Markdown code fence wrapper some models add around
// JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
