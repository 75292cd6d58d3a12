package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		text string
		data any
		want string
	}{
		{"no markers", "plain <text>", nil, "plain <text>"},
		{"field", "Hello {{.Name}}", map[string]any{"Name": "bee"}, "Hello bee"},
		{"no escaping", "{{.V}}", map[string]any{"V": "a < b & c"}, "a < b & c"},
		{"default", `{{default "x" .Missing}}`, map[string]any{}, "x"},
		{"join", `{{join ", " .Items}}`, map[string]any{"Items": []string{"a", "b"}}, "a, b"},
		{"upper", `{{upper .V}}`, map[string]any{"V": "go"}, "GO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.text, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{.Broken", nil)
	assert.Error(t, err)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_type": map[string]any{"type": "string"},
			"tools":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"agent_type"},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"agent_type": "writer"}, false},
		{"extra fields allowed", map[string]any{"agent_type": "writer", "note": 1}, false},
		{"array of strings", map[string]any{"agent_type": "writer", "tools": []any{"a", "b"}}, false},
		{"missing required", map[string]any{}, true},
		{"nil params", nil, true},
		{"wrong type", map[string]any{"agent_type": 42.0}, true},
		{"wrong item type", map[string]any{"agent_type": "w", "tools": []any{1.0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParameters(tt.params, schema)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Message)
		})
	}
}

func TestCompileSchema_EmptyIsObject(t *testing.T) {
	s, err := CompileSchema(nil)
	require.NoError(t, err)
	assert.NoError(t, s.Validate(map[string]any{"anything": true}))
}

func TestCreateSchema(t *testing.T) {
	type sample struct {
		A string `json:"a" description:"Field A"`
		B *int   `json:"b"`
		C int    `json:"c,omitempty"`
		D []int  `json:"d,omitempty"`
	}
	schema := CreateSchema(sample{})
	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 4)
	assert.Equal(t, "array", props["d"].(map[string]any)["type"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["d"].(map[string]any)["items"])
	assert.Equal(t, "Field A", props["a"].(map[string]any)["description"])
	assert.Equal(t, []string{"a"}, schema["required"])
}
