package resolver

import (
	"testing"

	"github.com/lyzr/flowengine/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outputWithText(text string) sdk.NodeOutput {
	return sdk.NodeOutput{
		"output": text, "content": text, "text": text,
		"response": text, "value": text, "result": text,
		"type": "input",
	}
}

func TestResolveString_NoTokensReturnsUnchanged(t *testing.T) {
	r := New()
	table := MapTable{}
	got, warnings := r.ResolveString("plain string, no templates here", table)
	assert.Equal(t, "plain string, no templates here", got)
	assert.Empty(t, warnings)
}

func TestResolveString_SimpleChain(t *testing.T) {
	r := New()
	table := MapTable{"input_0": outputWithText("what is 2+2?")}
	got, warnings := r.ResolveString("Q: {{input_0.text}}", table)
	assert.Equal(t, "Q: what is 2+2?", got)
	assert.Empty(t, warnings)
}

func TestResolveString_FuzzyNodeName(t *testing.T) {
	// Scenario B: input_input0 should be reachable as input_0.
	r := New()
	table := MapTable{"input_input0": outputWithText("hello")}
	got, warnings := r.ResolveString("{{input_0.text}}", table)
	assert.Equal(t, "hello", got)
	assert.Empty(t, warnings)
}

func TestResolveString_DashUnderscoreSymmetry(t *testing.T) {
	r := New()
	table := MapTable{"openai-0": outputWithText("hi")}
	got, _ := r.ResolveString("{{openai_0.text}}", table)
	assert.Equal(t, "hi", got)

	table2 := MapTable{"openai_0": outputWithText("hi")}
	got2, _ := r.ResolveString("{{openai-0.text}}", table2)
	assert.Equal(t, "hi", got2)
}

func TestResolveString_UnresolvedTokenPreservedVerbatim(t *testing.T) {
	// Scenario E.
	r := New()
	table := MapTable{"input_0": outputWithText("hi")}
	got, warnings := r.ResolveString("{{ghost.output}} {{input_0.text}}", table)
	assert.Equal(t, "{{ghost.output}} hi", got)
	require.Len(t, warnings, 1)
	assert.Equal(t, "{{ghost.output}}", warnings[0].Token)
}

func TestResolveString_FieldFallback(t *testing.T) {
	r := New()
	table := MapTable{"a": {"output": "x", "response": "x"}}
	got, warnings := r.ResolveString("{{a.response}}", table)
	assert.Equal(t, "x", got)
	assert.Empty(t, warnings)
}

func TestResolveString_NonStringCoercion(t *testing.T) {
	r := New()
	table := MapTable{"n": {"output": map[string]interface{}{"a": float64(1)}}}
	got, _ := r.ResolveString("{{n.output}}", table)
	assert.JSONEq(t, `{"a":1}`, got)

	tableNull := MapTable{"n": {"output": nil}}
	gotNull, _ := r.ResolveString("{{n.output}}", tableNull)
	assert.Equal(t, "", gotNull)

	tableNum := MapTable{"n": {"output": float64(42)}}
	gotNum, _ := r.ResolveString("val={{n.output}}", tableNum)
	assert.Equal(t, "val=42", gotNum)
}

func TestResolveString_PurityIsDeterministic(t *testing.T) {
	r := New()
	table := MapTable{"a": outputWithText("x")}
	g1, w1 := r.ResolveString("{{a.text}}-{{ghost.output}}", table)
	g2, w2 := r.ResolveString("{{a.text}}-{{ghost.output}}", table)
	assert.Equal(t, g1, g2)
	assert.Equal(t, w1, w2)
}

func TestNormalizeNodeRef_ReflexiveAndSymmetric(t *testing.T) {
	candidates := []string{"input-0", "input_1", "foo"}
	got, ok := NormalizeNodeRef("input-0", candidates)
	assert.True(t, ok)
	assert.Equal(t, "input-0", got)

	got2, ok2 := NormalizeNodeRef("input_0", candidates)
	assert.True(t, ok2)
	assert.Equal(t, "input-0", got2)
}

func TestResolveParams_DeepResolvesNestedStructures(t *testing.T) {
	r := New()
	table := MapTable{"a": outputWithText("X")}
	params := map[string]interface{}{
		"prompt": "say {{a.text}}",
		"nested": map[string]interface{}{
			"list": []interface{}{"{{a.text}}", 5, true},
		},
	}
	resolved, warnings := r.ResolveParams(params, table)
	assert.Empty(t, warnings)
	assert.Equal(t, "say X", resolved["prompt"])
	nested := resolved["nested"].(map[string]interface{})
	list := nested["list"].([]interface{})
	assert.Equal(t, "X", list[0])
	assert.Equal(t, 5, list[1])
	assert.Equal(t, true, list[2])
}

func TestResolveField_MetadataFieldsSkippedInFallback(t *testing.T) {
	out := sdk.NodeOutput{"type": "ai", "node_name": "n", "model": "gpt", "custom": "keep-me"}
	v, ok := ResolveField("absent", out)
	require.True(t, ok)
	assert.Equal(t, "keep-me", v)
}
