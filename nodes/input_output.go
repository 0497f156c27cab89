// Package nodes implements the built-in handlers spec.md §4.3 requires
// to exist: input, output, condition, merge, time, text_processor,
// json_handler, file_transformer. Each is a plain sdk.Handler; there is
// no handler base class, matching the teacher project's operator
// functions (cmd/workflow-runner/operators/control_flow.go).
package nodes

import (
	"github.com/lyzr/flowengine/resolver"
	"github.com/lyzr/flowengine/sdk"
)

// Input returns the raw value bound to this node's "input" key by the
// Input Assembler (an ambient run input, or a literal params["value"]
// fallback). The Normalizer materializes the type-specific alias field
// from params["type"].
func Input(_ *sdk.HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error) {
	return inputs["input"], nil
}

// Output resolves its "output"/"template" param (already resolved by
// the Assembler) or, failing that, concatenates/passes through its
// single upstream "input" value.
func Output(_ *sdk.HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error) {
	if tmpl, ok := params["output"]; ok {
		return tmpl, nil
	}
	if tmpl, ok := params["template"]; ok {
		return tmpl, nil
	}
	if v, ok := inputs["input"]; ok {
		if list, isList := v.([]interface{}); isList {
			var out string
			for i, item := range list {
				if i > 0 {
					out += " "
				}
				out += resolver.Stringify(item)
			}
			return out, nil
		}
		return v, nil
	}
	return nil, nil
}
