package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateQueryContains(t *testing.T) {
	e := NewEvaluator()

	out, err := e.Evaluate(context.Background(), "query.contains('turn on')", map[string]interface{}{
		"query":   "please turn on the porch light",
		"session": "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), "query.contains('turn on')", map[string]interface{}{
		"query":   "what is the capital of France",
		"session": "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestEvaluateCompoundCondition(t *testing.T) {
	e := NewEvaluator()

	out, err := e.Evaluate(context.Background(),
		"query.contains('light') || query.contains('thermostat')",
		map[string]interface{}{"query": "set the thermostat to 20", "session": "s1"})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestEvaluateSessionVariable(t *testing.T) {
	e := NewEvaluator()

	out, err := e.Evaluate(context.Background(), "session == 'kiosk'", map[string]interface{}{
		"query":   "hello",
		"session": "kiosk",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestEvaluateInvalidExpression(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate(context.Background(), "query +", map[string]interface{}{
		"query":   "hello",
		"session": "s1",
	})
	assert.Error(t, err)
}

func TestEvaluateUsesCache(t *testing.T) {
	e := NewEvaluator()
	expr := "query.startsWith('hey')"

	_, err := e.Evaluate(context.Background(), expr, map[string]interface{}{
		"query":   "hey there",
		"session": "s1",
	})
	require.NoError(t, err)

	e.mu.RLock()
	_, cached := e.cache[expr]
	e.mu.RUnlock()
	assert.True(t, cached)

	e.ClearCache()

	e.mu.RLock()
	assert.Empty(t, e.cache)
	e.mu.RUnlock()
}

func TestValidateExpression(t *testing.T) {
	e := NewEvaluator()

	assert.NoError(t, e.ValidateExpression("query.contains('x')"))
	assert.Error(t, e.ValidateExpression("query +"), "syntax error must be rejected")
	assert.Error(t, e.ValidateExpression("query"), "non-boolean result must be rejected")
	assert.Error(t, e.ValidateExpression("unknown_var == 'x'"), "undeclared variable must be rejected")
}
