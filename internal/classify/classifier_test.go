package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mjallday/switchboard/internal/eval/template"
	"github.com/mjallday/switchboard/internal/llm"
	"github.com/mjallday/switchboard/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClient scripts Complete responses per attempt.
type fakeClient struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeClient) Complete(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if f.errs != nil && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.responses[i], nil
}

func (f *fakeClient) StreamComplete(ctx context.Context, messages []llm.Message, params llm.Params) (llm.Stream, error) {
	panic("classifier must not stream")
}

func testRegistry(t *testing.T, rules []registry.Rule) *registry.Registry {
	t.Helper()

	reg, err := registry.New(registry.File{
		Default: "general",
		Rules:   rules,
		Handlers: []registry.Descriptor{
			{Category: "home", SystemPrompt: "You are a smart home assistant.", Model: "test-model", Temperature: 0.3, MemoryPolicy: registry.MemoryPerSession},
			{Category: "japanese", SystemPrompt: "You are a Japanese tutor.", Model: "test-model", Temperature: 0.7, MemoryPolicy: registry.MemoryPerSession},
			{Category: "general", SystemPrompt: "You are a general assistant.", Model: "test-model", Temperature: 0.7, MemoryPolicy: registry.MemoryPerSession},
		},
	})
	require.NoError(t, err)
	return reg
}

func newClassifier(t *testing.T, reg *registry.Registry, client llm.Client, maxRetries int) *Classifier {
	t.Helper()

	c, err := New(reg, client, template.NewEngine(), zap.NewNop(), Config{
		Model:       "test-model",
		Temperature: 0.1,
		MaxRetries:  maxRetries,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestClassifyValidResponse(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"category": "home", "confidence": 0.92, "reasoning": "device command"}`,
	}}
	c := newClassifier(t, testRegistry(t, nil), client, 0)

	cls, err := c.Classify(context.Background(), "Turn on the kitchen light")
	require.NoError(t, err)

	assert.Equal(t, registry.Category("home"), cls.Category)
	assert.InDelta(t, 0.92, cls.Confidence, 0.001)
	assert.Equal(t, "device command", cls.Reasoning)
}

func TestClassifyEmptyInput(t *testing.T) {
	c := newClassifier(t, testRegistry(t, nil), &fakeClient{responses: []string{""}}, 0)

	_, err := c.Classify(context.Background(), "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestClassifyCategoryAlwaysKnown(t *testing.T) {
	// Whatever the model answers, the returned category must resolve.
	reg := testRegistry(t, nil)
	responses := []string{
		`{"category": "home", "confidence": 0.9, "reasoning": "r"}`,
		`{"category": "HOME", "confidence": 0.9, "reasoning": "r"}`,
		`{"category": "home automation", "confidence": 0.9, "reasoning": "r"}`,
		`{"category": "weather", "confidence": 0.9, "reasoning": "r"}`,
		`not even json`,
	}

	for _, resp := range responses {
		c := newClassifier(t, reg, &fakeClient{responses: []string{resp}}, 0)

		cls, err := c.Classify(context.Background(), "some query")
		require.NoError(t, err)
		assert.True(t, reg.Known(cls.Category), "category %q must be known for response %q", cls.Category, resp)
	}
}

func TestClassifyCoercesCaseAndSubstring(t *testing.T) {
	reg := testRegistry(t, nil)

	c := newClassifier(t, reg, &fakeClient{responses: []string{
		`{"category": "Japanese", "confidence": 0.8, "reasoning": "r"}`,
	}}, 0)
	cls, err := c.Classify(context.Background(), "what does konnichiwa mean")
	require.NoError(t, err)
	assert.Equal(t, registry.Category("japanese"), cls.Category)

	c = newClassifier(t, reg, &fakeClient{responses: []string{
		`{"category": "home automation", "confidence": 0.8, "reasoning": "r"}`,
	}}, 0)
	cls, err = c.Classify(context.Background(), "dim the lights")
	require.NoError(t, err)
	assert.Equal(t, registry.Category("home"), cls.Category)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	client := &fakeClient{responses: []string{
		"```json\n{\"category\": \"general\", \"confidence\": 0.7, \"reasoning\": \"r\"}\n```",
	}}
	c := newClassifier(t, testRegistry(t, nil), client, 0)

	cls, err := c.Classify(context.Background(), "explain machine learning")
	require.NoError(t, err)
	assert.Equal(t, registry.Category("general"), cls.Category)
}

func TestClassifyRetriesThenSucceeds(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"category": "weather", "confidence": 0.9, "reasoning": "r"}`,
		`{"category": "home", "confidence": 0.85, "reasoning": "r"}`,
	}}
	c := newClassifier(t, testRegistry(t, nil), client, 2)

	cls, err := c.Classify(context.Background(), "thermostat setup")
	require.NoError(t, err)

	assert.Equal(t, registry.Category("home"), cls.Category)
	assert.Equal(t, 2, client.calls)
}

func TestClassifyExhaustedFallsBack(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"category": "weather", "confidence": 0.9, "reasoning": "r"}`,
	}}
	c := newClassifier(t, testRegistry(t, nil), client, 1)

	cls, err := c.Classify(context.Background(), "will it rain tomorrow")
	require.NoError(t, err)

	assert.Equal(t, registry.Category("general"), cls.Category)
	assert.Equal(t, 0.0, cls.Confidence)
	assert.Equal(t, ReasonClassificationFailed, cls.Reasoning)
	assert.Equal(t, 2, client.calls)
}

func TestClassifyUpstreamErrorFallsBack(t *testing.T) {
	client := &fakeClient{
		responses: []string{""},
		errs:      []error{errors.New("connection refused")},
	}
	c := newClassifier(t, testRegistry(t, nil), client, 0)

	cls, err := c.Classify(context.Background(), "anything at all")
	require.NoError(t, err)

	assert.Equal(t, registry.Category("general"), cls.Category)
	assert.Equal(t, ReasonClassificationFailed, cls.Reasoning)
}

func TestClassifyFastRuleShortCircuits(t *testing.T) {
	client := &fakeClient{responses: []string{""}}
	c := newClassifier(t, testRegistry(t, []registry.Rule{
		{Condition: "query.contains('turn on')", Category: "home"},
	}), client, 0)

	cls, err := c.Classify(context.Background(), "please turn on the porch light")
	require.NoError(t, err)

	assert.Equal(t, registry.Category("home"), cls.Category)
	assert.Equal(t, 1.0, cls.Confidence)
	assert.Contains(t, cls.Reasoning, "matched rule 0")
	assert.Equal(t, 0, client.calls, "rule match must not call the LLM")
}

func TestClassifyRuleMissSkipsToLLM(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"category": "general", "confidence": 0.6, "reasoning": "r"}`,
	}}
	c := newClassifier(t, testRegistry(t, []registry.Rule{
		{Condition: "query.contains('turn on')", Category: "home"},
	}), client, 0)

	cls, err := c.Classify(context.Background(), "what is the capital of France")
	require.NoError(t, err)

	assert.Equal(t, registry.Category("general"), cls.Category)
	assert.Equal(t, 1, client.calls)
}

func TestClassifyClampsConfidence(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"category": "home", "confidence": 1.7, "reasoning": "r"}`,
	}}
	c := newClassifier(t, testRegistry(t, nil), client, 0)

	cls, err := c.Classify(context.Background(), "lights")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cls.Confidence)
}

func TestClassifyDeterministicWithCannedResponse(t *testing.T) {
	reg := testRegistry(t, nil)
	canned := `{"category": "home", "confidence": 0.92, "reasoning": "device command"}`

	first := newClassifier(t, reg, &fakeClient{responses: []string{canned}}, 0)
	second := newClassifier(t, reg, &fakeClient{responses: []string{canned}}, 0)

	a, err := first.Classify(context.Background(), "Turn on the kitchen light")
	require.NoError(t, err)
	b, err := second.Classify(context.Background(), "Turn on the kitchen light")
	require.NoError(t, err)

	assert.Equal(t, a.Category, b.Category)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestNewRejectsInvalidRuleCondition(t *testing.T) {
	reg := testRegistry(t, []registry.Rule{
		{Condition: "query +", Category: "home"},
	})

	_, err := New(reg, &fakeClient{responses: []string{""}}, template.NewEngine(), zap.NewNop(), Config{
		Model: "test-model",
	})
	assert.Error(t, err)
}

func TestNewRejectsNonBooleanRuleCondition(t *testing.T) {
	reg := testRegistry(t, []registry.Rule{
		{Condition: "query", Category: "home"},
	})

	_, err := New(reg, &fakeClient{responses: []string{""}}, template.NewEngine(), zap.NewNop(), Config{
		Model: "test-model",
	})
	assert.Error(t, err)
}
