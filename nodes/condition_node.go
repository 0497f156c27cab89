package nodes

import (
	"encoding/json"

	"github.com/lyzr/flowengine/condition"
	"github.com/lyzr/flowengine/sdk"
)

// ConditionHandler closes over a shared condition.Evaluator (its CEL
// program cache is worth reusing across every condition node in a
// workflow, and across runs).
type ConditionHandler struct {
	Evaluator *condition.Evaluator
}

// NewConditionHandler returns a handler backed by a fresh Evaluator.
func NewConditionHandler() *ConditionHandler {
	return &ConditionHandler{Evaluator: condition.New()}
}

// Handle evaluates params["paths"] (an ordered list of condition.Path)
// against the assembled inputs plus the run's output table, returning
// the matched path id as primary, or null if none matched.
func (h *ConditionHandler) Handle(hctx *sdk.HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error) {
	paths, err := decodePaths(params["paths"])
	if err != nil {
		return nil, sdk.NewError(sdk.ErrInvalidWorkflow, "condition node has malformed paths", err)
	}

	data := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		data[k] = v
	}
	for _, nodeID := range hctx.Outputs.Keys() {
		if out, ok := hctx.Outputs.Get(nodeID); ok {
			data[nodeID] = map[string]interface{}(out)
		}
	}

	matched, ok, err := h.Evaluator.Match(paths, data)
	if err != nil {
		return nil, sdk.NewError(sdk.ErrHandlerError, "condition evaluation failed", err).WithSub("condition")
	}
	if !ok {
		return map[string]interface{}{"output": nil, "matched_path": nil}, nil
	}
	return map[string]interface{}{"output": matched, "matched_path": matched}, nil
}

// decodePaths accepts either []condition.Path directly (programmatic
// construction) or the JSON-decoded []interface{} form a workflow
// document param produces.
func decodePaths(raw interface{}) ([]condition.Path, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []condition.Path:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var paths []condition.Path
		if err := json.Unmarshal(b, &paths); err != nil {
			return nil, err
		}
		return paths, nil
	}
}
