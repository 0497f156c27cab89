package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/lyzr/flowengine/engine"
	"github.com/lyzr/flowengine/nodes"
	"github.com/lyzr/flowengine/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *engine.Engine {
	e := engine.New()
	nodes.RegisterBuiltins(e)
	e.Register("openai", sdk.HandlerKindAI, func(_ *sdk.HandlerContext, params, _ map[string]interface{}) (interface{}, error) {
		prompt, _ := params["prompt"].(string)
		return map[string]interface{}{"response": "A: " + prompt}, nil
	})
	e.Register("boom", sdk.HandlerKindBuiltin, func(_ *sdk.HandlerContext, _, _ map[string]interface{}) (interface{}, error) {
		return nil, sdk.NewError(sdk.ErrHandlerError, "deliberate failure", nil)
	})
	e.Register("sleep", sdk.HandlerKindIntegration, func(hctx *sdk.HandlerContext, _, _ map[string]interface{}) (interface{}, error) {
		select {
		case <-time.After(10 * time.Second):
			return "woke up", nil
		case <-hctx.Context.Done():
			return nil, sdk.NewError(sdk.ErrCancelled, "observed cancellation", hctx.Context.Err())
		}
	})
	return e
}

func TestRun_SimpleChain(t *testing.T) {
	e := newTestEngine()
	wf := sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "input_0", Type: "input", Params: map[string]interface{}{"type": "Text"}},
			{ID: "openai-0", Type: "openai", Params: map[string]interface{}{"prompt": "Q: {{input_0.text}}"}},
			{ID: "output-0", Type: "output", Params: map[string]interface{}{"output": "{{openai-0.response}}"}},
		},
		Edges: []sdk.Edge{
			{Source: "input_0", Target: "openai-0"},
			{Source: "openai-0", Target: "output-0"},
		},
	}
	report, err := e.Run(context.Background(), wf, sdk.RunInputs{"input": "what is 2+2?"})
	require.NoError(t, err)
	assert.Equal(t, sdk.RunCompleted, report.Status)
	assert.Equal(t, "what is 2+2?", report.Outputs["input_0"]["text"])
	assert.Equal(t, "A: Q: what is 2+2?", report.Outputs["openai-0"]["response"])
	assert.Equal(t, "A: Q: what is 2+2?", report.Outputs["output-0"]["output"])
}

func TestRun_FuzzyNodeNaming(t *testing.T) {
	e := newTestEngine()
	wf := sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "input-0", Type: "input", Params: map[string]interface{}{"type": "Text"}},
			{ID: "output-0", Type: "output", Params: map[string]interface{}{"output": "{{input_0.text}}"}},
		},
		Edges: []sdk.Edge{{Source: "input-0", Target: "output-0"}},
	}
	report, err := e.Run(context.Background(), wf, sdk.RunInputs{"input": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", report.Outputs["output-0"]["output"])
}

func TestRun_ConditionalSkip(t *testing.T) {
	e := newTestEngine()
	wf := sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "input_0", Type: "input", Params: map[string]interface{}{"type": "Text"}},
			{ID: "cond", Type: "condition", Params: map[string]interface{}{
				"paths": []interface{}{
					map[string]interface{}{"id": "yes", "clauses": []interface{}{
						map[string]interface{}{"field": "input", "operator": "==", "value": "go"},
					}},
				},
			}},
			{ID: "taken", Type: "output", Params: map[string]interface{}{"output": "took yes"}},
			{ID: "not_taken", Type: "output", Params: map[string]interface{}{"output": "took no"}},
		},
		Edges: []sdk.Edge{
			{Source: "input_0", Target: "cond"},
			{Source: "cond", Target: "taken", SourceHandle: "yes"},
			{Source: "cond", Target: "not_taken", SourceHandle: "no"},
		},
	}
	report, err := e.Run(context.Background(), wf, sdk.RunInputs{"input": "go"})
	require.NoError(t, err)
	assert.Equal(t, sdk.StatusCompleted, report.NodeResults["taken"].Status)
	assert.Equal(t, sdk.StatusSkipped, report.NodeResults["not_taken"].Status)
}

func TestRun_PartialFailurePropagates(t *testing.T) {
	e := newTestEngine()
	wf := sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "a", Type: "boom", Params: map[string]interface{}{}},
			{ID: "b", Type: "output", Params: map[string]interface{}{"output": "never"}},
			{ID: "c", Type: "output", Params: map[string]interface{}{"output": "independent"}},
		},
		Edges: []sdk.Edge{{Source: "a", Target: "b"}},
	}
	report, err := e.Run(context.Background(), wf, sdk.RunInputs{})
	require.NoError(t, err)
	assert.Equal(t, sdk.RunPartial, report.Status)
	assert.Equal(t, sdk.StatusFailed, report.NodeResults["a"].Status)
	assert.Equal(t, sdk.StatusSkipped, report.NodeResults["b"].Status)
	assert.Equal(t, sdk.StatusCompleted, report.NodeResults["c"].Status)
}

func TestRun_UnresolvedTokenWarning(t *testing.T) {
	e := newTestEngine()
	wf := sdk.Workflow{
		Nodes: []sdk.Node{
			{ID: "input_0", Type: "input", Params: map[string]interface{}{"type": "Text"}},
			{ID: "output-0", Type: "output", Params: map[string]interface{}{
				"output": "{{ghost.output}} {{input_0.text}}",
			}},
		},
		Edges: []sdk.Edge{{Source: "input_0", Target: "output-0"}},
	}
	report, err := e.Run(context.Background(), wf, sdk.RunInputs{"input": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "{{ghost.output}} hi", report.Outputs["output-0"]["output"])
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0].Token, "ghost.output")
}

func TestRun_Cancellation(t *testing.T) {
	e := newTestEngine()
	wf := sdk.Workflow{
		Nodes: []sdk.Node{{ID: "slow", Type: "sleep", Params: map[string]interface{}{}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	report, err := e.Run(ctx, wf, sdk.RunInputs{})
	require.NoError(t, err)
	assert.Equal(t, sdk.RunCancelled, report.Status)
	assert.Equal(t, sdk.StatusFailed, report.NodeResults["slow"].Status)
}
