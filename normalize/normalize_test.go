package normalize

import (
	"testing"

	"github.com/lyzr/flowengine/sdk"
	"github.com/stretchr/testify/assert"
)

func TestNormalize_MapWithOutputField(t *testing.T) {
	out := Normalize("openai-0", "openai", nil, map[string]interface{}{
		"response": "A: 42",
		"output":   "A: 42",
		"usage":    map[string]interface{}{"tokens": 10},
	})
	for _, alias := range sdk.AliasFields {
		assert.Equal(t, "A: 42", out[alias], alias)
	}
	assert.Equal(t, "openai", out["type"])
	assert.Equal(t, map[string]interface{}{"tokens": 10}, out["usage"])
}

func TestNormalize_MapWithoutOutputPicksFirstAlias(t *testing.T) {
	out := Normalize("n1", "text_processor", nil, map[string]interface{}{
		"text": "hello",
	})
	assert.Equal(t, "hello", out["output"])
	for _, alias := range sdk.AliasFields {
		assert.Equal(t, "hello", out[alias])
	}
}

func TestNormalize_ScalarBecomesPrimary(t *testing.T) {
	out := Normalize("n1", "condition", nil, 3)
	assert.Equal(t, 3, out["output"])
	assert.Equal(t, 3, out["result"])
}

func TestNormalize_DoesNotOverwriteHandlerSuppliedAlias(t *testing.T) {
	out := Normalize("n1", "http", nil, map[string]interface{}{
		"output": "primary",
		"text":   "different",
	})
	assert.Equal(t, "primary", out["output"])
	assert.Equal(t, "different", out["text"])
	assert.Equal(t, "primary", out["content"])
}

func TestNormalize_InputNodeMaterializesTypeField(t *testing.T) {
	out := Normalize("input_0", "input", map[string]interface{}{"type": "Text"}, "hello")
	assert.Equal(t, "hello", out["text"])
}

func TestNormalize_IsIdempotent(t *testing.T) {
	first := Normalize("n1", "merge", nil, map[string]interface{}{"output": "v"})
	second := Normalize("n1", "merge", nil, first)
	assert.Equal(t, first, second)
}

func TestNodeName_DerivesFromSnakeAndKebabIds(t *testing.T) {
	assert.Equal(t, "Input 0", NodeName("input_0", nil))
	assert.Equal(t, "Openai 0", NodeName("openai-0", nil))
}

func TestNodeName_ExplicitParamWins(t *testing.T) {
	assert.Equal(t, "My Node", NodeName("n1", map[string]interface{}{"node_name": "My Node"}))
}
