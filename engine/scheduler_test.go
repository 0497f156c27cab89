package engine

import (
	"testing"

	"github.com/lyzr/flowengine/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, wf sdk.Workflow) *graph {
	t.Helper()
	g, err := compile(wf)
	require.NoError(t, err)
	return g
}

func TestRunTracker_EntryNodesReadyImmediately(t *testing.T) {
	g := mustCompile(t, sdk.Workflow{Nodes: []sdk.Node{{ID: "a"}, {ID: "b"}}})
	tr := newRunTracker(g)
	assert.ElementsMatch(t, []string{"a", "b"}, tr.advance())
	assert.Empty(t, tr.advance(), "already-dispatched entry nodes should not be returned again")
}

func TestRunTracker_DownstreamReadyAfterDependencyCompletes(t *testing.T) {
	g := mustCompile(t, sdk.Workflow{
		Nodes: []sdk.Node{{ID: "a"}, {ID: "b"}},
		Edges: []sdk.Edge{{Source: "a", Target: "b"}},
	})
	tr := newRunTracker(g)
	assert.Equal(t, []string{"a"}, tr.advance())

	tr.states["a"].status = sdk.StatusCompleted
	assert.Equal(t, []string{"b"}, tr.advance())
}

func TestRunTracker_SkipPropagatesOnUpstreamFailure(t *testing.T) {
	g := mustCompile(t, sdk.Workflow{
		Nodes: []sdk.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []sdk.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
		},
	})
	tr := newRunTracker(g)
	tr.advance()

	tr.states["a"].status = sdk.StatusFailed
	ready := tr.advance()

	assert.Empty(t, ready)
	assert.Equal(t, sdk.StatusSkipped, tr.states["b"].status)
	assert.Equal(t, sdk.SkipUpstreamFailed, tr.states["b"].reason)
	assert.Equal(t, sdk.StatusSkipped, tr.states["c"].status, "skip cascades transitively")
	assert.Equal(t, sdk.SkipUpstreamFailed, tr.states["c"].reason)
	assert.True(t, tr.allTerminal())
}

func TestRunTracker_ConditionGatesUnmatchedBranch(t *testing.T) {
	g := mustCompile(t, sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "cond", Type: "condition"},
			{ID: "yes"},
			{ID: "no"},
		},
		Edges: []sdk.Edge{
			{Source: "cond", Target: "yes", SourceHandle: "true"},
			{Source: "cond", Target: "no", SourceHandle: "false"},
		},
	})
	tr := newRunTracker(g)
	tr.advance()

	matched := "true"
	tr.states["cond"].status = sdk.StatusCompleted
	tr.conditionMatch["cond"] = &matched

	ready := tr.advance()
	assert.Equal(t, []string{"yes"}, ready)
	assert.Equal(t, sdk.StatusSkipped, tr.states["no"].status)
	assert.Equal(t, sdk.SkipConditionNotTaken, tr.states["no"].reason)
}

func TestRunTracker_ConditionNoMatchSkipsAllBranches(t *testing.T) {
	g := mustCompile(t, sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "cond", Type: "condition"},
			{ID: "yes"},
		},
		Edges: []sdk.Edge{
			{Source: "cond", Target: "yes", SourceHandle: "true"},
		},
	})
	tr := newRunTracker(g)
	tr.advance()

	tr.states["cond"].status = sdk.StatusCompleted
	tr.conditionMatch["cond"] = nil

	ready := tr.advance()
	assert.Empty(t, ready)
	assert.Equal(t, sdk.StatusSkipped, tr.states["yes"].status)
	assert.Equal(t, sdk.SkipConditionNotTaken, tr.states["yes"].reason)
}

func TestRunTracker_UngatedEdgeFromConditionAlwaysSatisfied(t *testing.T) {
	g := mustCompile(t, sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "cond", Type: "condition"},
			{ID: "always"},
		},
		Edges: []sdk.Edge{{Source: "cond", Target: "always"}},
	})
	tr := newRunTracker(g)
	tr.advance()

	tr.states["cond"].status = sdk.StatusCompleted
	tr.conditionMatch["cond"] = nil

	assert.Equal(t, []string{"always"}, tr.advance())
}
