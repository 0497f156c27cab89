package patch

import (
	"testing"

	"github.com/lyzr/flowengine/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_AddNode(t *testing.T) {
	wf := sdk.Workflow{
		Nodes: []sdk.Node{{ID: "a", Type: "input", Params: map[string]interface{}{}}},
	}
	ops := []Operation{{
		Op:   "add",
		Path: "/nodes/-",
		Value: map[string]interface{}{
			"id": "b", "type": "output", "params": map[string]interface{}{},
		},
	}}
	out, err := Apply(wf, ops)
	require.NoError(t, err)
	assert.Len(t, out.Nodes, 2)
	assert.Equal(t, "b", out.Nodes[1].ID)
	// Original untouched.
	assert.Len(t, wf.Nodes, 1)
}

func TestApply_ReplaceParam(t *testing.T) {
	wf := sdk.Workflow{
		Nodes: []sdk.Node{{ID: "a", Type: "openai", Params: map[string]interface{}{"prompt": "old"}}},
	}
	ops := []Operation{{Op: "replace", Path: "/nodes/0/params/prompt", Value: "new"}}
	out, err := Apply(wf, ops)
	require.NoError(t, err)
	assert.Equal(t, "new", out.Nodes[0].Params["prompt"])
}

func TestApply_InvalidPathErrors(t *testing.T) {
	wf := sdk.Workflow{Nodes: []sdk.Node{{ID: "a"}}}
	ops := []Operation{{Op: "replace", Path: "/nodes/9/id", Value: "x"}}
	_, err := Apply(wf, ops)
	assert.Error(t, err)
}
