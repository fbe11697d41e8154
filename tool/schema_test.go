package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveArgs struct {
	Key   string `json:"key" description:"fact name"`
	Value string `json:"value"`
	Scope string `json:"scope,omitempty"`
	Note  *string
	skip  string
}

func TestSchemaOf(t *testing.T) {
	schema := SchemaOf(&saveArgs{skip: "x"})
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"key", "value"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 4)
	assert.Equal(t, "fact name", props["key"].(map[string]any)["description"])
	assert.Equal(t, "string", props["Note"].(map[string]any)["type"])

	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, SchemaOf(42))
}

func TestValidateArgs(t *testing.T) {
	schema := SchemaOf(saveArgs{})

	require.NoError(t, validateArgs(map[string]any{"key": "a", "value": "b", "extra": 1}, schema))

	var verr *ValidationError
	require.ErrorAs(t, validateArgs(map[string]any{"key": "a"}, schema), &verr)
	assert.Equal(t, "value", verr.Field)

	require.ErrorAs(t, validateArgs(map[string]any{"key": "", "value": "b"}, schema), &verr)
	assert.Equal(t, "key", verr.Field)

	require.ErrorAs(t, validateArgs(map[string]any{"key": 1, "value": "b"}, schema), &verr)
	assert.Contains(t, verr.Error(), "expected type string")
}

func TestValidateArgs_DecodedSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"names"},
		"properties": map[string]any{
			"names": map[string]any{"type": "array"},
			"limit": map[string]any{"type": "integer"},
		},
	}
	assert.Error(t, validateArgs(map[string]any{}, schema))
	assert.NoError(t, validateArgs(map[string]any{"names": []any{"a"}, "limit": float64(3)}, schema))
	assert.Error(t, validateArgs(map[string]any{"names": "a"}, schema))
	assert.Error(t, validateArgs(map[string]any{"names": []any{}, "limit": 2.5}, schema))
}
