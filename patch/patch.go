// Package patch applies RFC 6902 JSON Patch operations to a workflow
// document before a run starts (SPEC_FULL.md §6), grounded in the
// teacher project's run-patch feature
// (cmd/orchestrator/handlers/run_patch.go, service/run_patch.go).
//
// Patching never touches an in-flight run: callers always derive a new
// sdk.Workflow here, then hand it to Engine.Run as a separate call.
package patch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/lyzr/flowengine/sdk"
)

// Operation is one RFC 6902 patch operation, e.g.
// {"op":"add","path":"/nodes/-","value":{...}}.
type Operation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
	From  string      `json:"from,omitempty"`
}

// Apply marshals wf, applies ops as a JSON Patch document, and
// unmarshals the result back into a new sdk.Workflow. The input
// workflow is never mutated.
func Apply(wf sdk.Workflow, ops []Operation) (sdk.Workflow, error) {
	original, err := json.Marshal(wf)
	if err != nil {
		return sdk.Workflow{}, fmt.Errorf("marshal workflow: %w", err)
	}

	patchDoc, err := json.Marshal(ops)
	if err != nil {
		return sdk.Workflow{}, fmt.Errorf("marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return sdk.Workflow{}, fmt.Errorf("decode patch: %w", err)
	}

	patched, err := p.Apply(original)
	if err != nil {
		return sdk.Workflow{}, fmt.Errorf("apply patch: %w", err)
	}

	var out sdk.Workflow
	if err := json.Unmarshal(patched, &out); err != nil {
		return sdk.Workflow{}, fmt.Errorf("unmarshal patched workflow: %w", err)
	}
	return out, nil
}
