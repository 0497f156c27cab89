package engine

import (
	"context"
	"time"

	"github.com/lyzr/flowengine/normalize"
	"github.com/lyzr/flowengine/sdk"
)

// nodeRunResult is what a worker goroutine reports back to the
// coordinator when a node finishes executing.
type nodeRunResult struct {
	nodeID   string
	output   sdk.NodeOutput
	matched  *string // non-nil only for condition nodes, the selected path
	err      *sdk.EngineError
	duration time.Duration
}

// runNode assembles a node's inputs, dispatches to its registered
// handler under the resolved timeout, and normalizes the result. It
// touches no coordinator-owned state directly -- everything it reads
// comes through the read-only table and registry.
func (e *Engine) runNode(ctx context.Context, runID string, cn *compiledNode, inputIndex int, table *outputTable, runInputs sdk.RunInputs) nodeRunResult {
	start := e.clock()

	handler, defaultTimeout, err := e.registry.Lookup(cn.node.Type)
	if err != nil {
		return nodeRunResult{nodeID: cn.node.ID, err: sdk.AsEngineError(err), duration: e.clock().Sub(start)}
	}

	bundle := assemble(cn, inputIndex, table, runInputs, e.resolver)

	timeout := defaultTimeout
	if ms, ok := bundle.params["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hctx := &sdk.HandlerContext{
		Context: callCtx,
		RunID:   runID,
		NodeID:  cn.node.ID,
		Outputs: table,
		Logger:  e.logger.With("run_id", runID, "node_id", cn.node.ID),
		Clock:   e.clock,
	}

	type callResult struct {
		val interface{}
		err error
	}
	done := make(chan callResult, 1)
	go func() {
		val, err := handler(hctx, bundle.params, bundle.inputs)
		done <- callResult{val, err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		kind := sdk.ErrTimeout
		if ctx.Err() != nil {
			kind = sdk.ErrCancelled
		}
		return nodeRunResult{
			nodeID:   cn.node.ID,
			err:      sdk.NewError(kind, "node did not complete before its deadline", callCtx.Err()),
			duration: e.clock().Sub(start),
		}
	}

	duration := e.clock().Sub(start)
	if res.err != nil {
		return nodeRunResult{nodeID: cn.node.ID, err: sdk.AsEngineError(res.err), duration: duration}
	}

	out := normalize.Normalize(cn.node.ID, cn.node.Type, bundle.params, res.val)

	var matched *string
	if cn.node.Type == "condition" {
		if mp, ok := out["matched_path"].(string); ok {
			m := mp
			matched = &m
		}
	}

	return nodeRunResult{nodeID: cn.node.ID, output: out, matched: matched, duration: duration}
}
