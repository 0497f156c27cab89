package engine

import (
	"testing"

	"github.com/lyzr/flowengine/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_DuplicateNodeID(t *testing.T) {
	wf := sdk.Workflow{Nodes: []sdk.Node{{ID: "a"}, {ID: "a"}}}
	_, err := compile(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestCompile_DanglingEdge(t *testing.T) {
	wf := sdk.Workflow{
		Nodes: []sdk.Node{{ID: "a"}},
		Edges: []sdk.Edge{{Source: "a", Target: "missing"}},
	}
	_, err := compile(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}

func TestCompile_Cycle(t *testing.T) {
	wf := sdk.Workflow{
		Nodes: []sdk.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []sdk.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "a"},
		},
	}
	_, err := compile(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic graph")
}

func TestCompile_DuplicateEdgesCollapse(t *testing.T) {
	wf := sdk.Workflow{
		Nodes: []sdk.Node{{ID: "a"}, {ID: "b"}},
		Edges: []sdk.Edge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "b"},
		},
	}
	g, err := compile(wf)
	require.NoError(t, err)
	assert.Len(t, g.nodes["b"].incomingEdges, 1)
	assert.Equal(t, []string{"a"}, g.nodes["b"].dependencies)
}

func TestCompile_PreservesDeclarationOrder(t *testing.T) {
	wf := sdk.Workflow{Nodes: []sdk.Node{{ID: "z"}, {ID: "a"}, {ID: "m"}}}
	g, err := compile(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, g.order)
}
