package engine

import (
	"strconv"

	"github.com/lyzr/flowengine/resolver"
	"github.com/lyzr/flowengine/sdk"
)

// assembledInputs is the per-node bundle the Input Assembler hands the
// dispatcher (SPEC_FULL.md §4.4): resolved params ready for the
// handler, the grouped-by-handle upstream inputs, and any unresolved
// template warnings collected along the way.
type assembledInputs struct {
	params   map[string]interface{}
	inputs   map[string]interface{}
	warnings []sdk.ResolveWarning
}

// assemble builds the input bundle for node n:
//  1. group incoming edges by target handle ("input" when unnamed),
//     binding a single value when one edge feeds a handle and a list
//     when several do (declaration order preserved);
//  2. for input-typed nodes, merge in the ambient run input matched by
//     precedence (input, input_<n>, <node_name>, raw id), falling back
//     to a literal params["value"];
//  3. deep-resolve every string in the node's params against the
//     output table.
func assemble(cn *compiledNode, inputIndex int, table resolver.Table, runInputs sdk.RunInputs, res *resolver.Resolver) assembledInputs {
	inputs := make(map[string]interface{})

	type group struct {
		values []interface{}
	}
	groups := make(map[string]*group)
	var handleOrder []string
	for _, e := range cn.incomingEdges {
		handle := e.TargetHandle
		if handle == "" {
			handle = "input"
		}
		g, ok := groups[handle]
		if !ok {
			g = &group{}
			groups[handle] = g
			handleOrder = append(handleOrder, handle)
		}
		srcOut, ok := table.Get(e.Source)
		if !ok {
			continue
		}
		g.values = append(g.values, srcOut.Primary())
	}
	for _, handle := range handleOrder {
		g := groups[handle]
		if len(g.values) == 1 {
			inputs[handle] = g.values[0]
		} else {
			inputs[handle] = g.values
		}
	}

	if cn.node.Type == "input" {
		if _, already := inputs["input"]; !already {
			if v, ok := ambientInput(cn.node, inputIndex, runInputs); ok {
				inputs["input"] = v
			} else if lit, ok := cn.node.Params["value"]; ok {
				inputs["input"] = lit
			}
		}
	}

	resolvedParams, warnings := res.ResolveParams(cn.node.Params, table)

	return assembledInputs{params: resolvedParams, inputs: inputs, warnings: warnings}
}

// ambientInput looks up the node's matching run input by precedence:
// "input", "input_<n>" (n = the node's 0-based position among input
// nodes), the node's resolved name, and finally its raw id.
func ambientInput(n sdk.Node, index int, runInputs sdk.RunInputs) (interface{}, bool) {
	candidates := []string{"input"}
	candidates = append(candidates, indexedKey(index))
	if name, ok := n.Params["node_name"].(string); ok && name != "" {
		candidates = append(candidates, name)
	}
	candidates = append(candidates, n.ID)

	for _, key := range candidates {
		if v, _, ok := runInputs.Resolve(key); ok {
			return v, true
		}
	}
	return nil, false
}

func indexedKey(index int) string {
	return "input_" + strconv.Itoa(index)
}
