package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascade/pkg/flow"
)

var personSchema = []byte(`{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"age":  {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`)

func TestValidate_NoSchemaAcceptsAnything(t *testing.T) {
	v := NewInputValidator()
	assert.NoError(t, v.Validate(map[string]any{"anything": true}, nil))
	assert.NoError(t, v.Validate(nil, nil))
}

func TestValidate_Passing(t *testing.T) {
	v := NewInputValidator()
	err := v.Validate(map[string]any{"name": "ada", "age": 36}, personSchema)
	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	v := NewInputValidator()
	err := v.Validate(map[string]any{"age": 36}, personSchema)
	require.Error(t, err)
	fe, ok := err.(*flow.Error)
	require.True(t, ok)
	assert.Equal(t, flow.ErrCodeValidation, fe.Code)
	assert.NotEmpty(t, fe.Details["violations"])
}

func TestValidate_WrongType(t *testing.T) {
	v := NewInputValidator()
	err := v.Validate(map[string]any{"name": "ada", "age": "old"}, personSchema)
	require.Error(t, err)
	assert.Equal(t, flow.ErrCodeValidation, err.(*flow.Error).Code)
}

func TestValidate_AdditionalPropertyRejected(t *testing.T) {
	v := NewInputValidator()
	err := v.Validate(map[string]any{"name": "ada", "extra": 1}, personSchema)
	require.Error(t, err)
}

func TestCompile_MalformedSchema(t *testing.T) {
	v := NewInputValidator()
	err := v.Compile([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, flow.ErrCodeValidation, err.(*flow.Error).Code)
}

func TestValidate_SchemaCached(t *testing.T) {
	v := NewInputValidator()
	require.NoError(t, v.Compile(personSchema))
	v.mu.RLock()
	assert.Len(t, v.cache, 1)
	v.mu.RUnlock()

	require.NoError(t, v.Validate(map[string]any{"name": "ada"}, personSchema))
	v.mu.RLock()
	assert.Len(t, v.cache, 1)
	v.mu.RUnlock()
}
