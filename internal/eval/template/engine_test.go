package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSimple(t *testing.T) {
	e := NewEngine()

	out, err := e.Render("Hello {{name}}!", map[string]interface{}{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", out)
}

func TestRenderMissingVariableIsEmpty(t *testing.T) {
	e := NewEngine()

	out, err := e.Render("Hello {{name}}!", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "Hello !", out)
}

func TestRenderHelpers(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name     string
		template string
		data     map[string]interface{}
		want     string
	}{
		{
			name:     "lowercase",
			template: "{{lowercase category}}",
			data:     map[string]interface{}{"category": "HOME"},
			want:     "home",
		},
		{
			name:     "trim",
			template: "{{trim query}}",
			data:     map[string]interface{}{"query": "  lights  "},
			want:     "lights",
		},
		{
			name:     "default with empty value",
			template: "{{default session \"anonymous\"}}",
			data:     map[string]interface{}{"session": ""},
			want:     "anonymous",
		},
		{
			name:     "default with value",
			template: "{{default session \"anonymous\"}}",
			data:     map[string]interface{}{"session": "s1"},
			want:     "s1",
		},
		{
			name:     "join",
			template: "{{join categories \", \"}}",
			data:     map[string]interface{}{"categories": []string{"home", "japanese", "general"}},
			want:     "home, japanese, general",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Render(tt.template, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	e := NewEngine()

	_, err := e.Render("{{#if}}", nil)
	assert.Error(t, err)
}

func TestRenderUsesCache(t *testing.T) {
	e := NewEngine()
	tmpl := "cached {{x}}"

	_, err := e.Render(tmpl, map[string]interface{}{"x": "1"})
	require.NoError(t, err)

	e.mu.RLock()
	_, cached := e.cache[tmpl]
	e.mu.RUnlock()
	assert.True(t, cached)

	e.ClearCache()

	e.mu.RLock()
	assert.Empty(t, e.cache)
	e.mu.RUnlock()
}

func TestValidateTemplate(t *testing.T) {
	e := NewEngine()

	assert.NoError(t, e.ValidateTemplate("Classify: {{query}}"))
	assert.Error(t, e.ValidateTemplate("{{#if}}"))
}
