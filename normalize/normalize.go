// Package normalize implements the Node Output Normalizer (spec.md
// §4.2): it coerces whatever a handler returns into a canonical
// sdk.NodeOutput carrying the six alias fields, a type-specific field
// for input-typed nodes, and metadata.
package normalize

import (
	"strings"

	"github.com/lyzr/flowengine/sdk"
	strcase "github.com/stoewer/go-strcase"
)

// typeField maps an input node's declared I/O type to the additional
// field name the normalizer must materialize for it.
var typeField = map[string]string{
	"text": "text", "image": "image", "audio": "audio",
	"file": "file", "json": "json",
}

// Normalize coerces a handler's return value into a canonical
// sdk.NodeOutput for nodeType/nodeID, given the node's resolved params
// (used to pull an explicit node_name and, for input nodes, the
// declared I/O type).
func Normalize(nodeID, nodeType string, params map[string]interface{}, result interface{}) sdk.NodeOutput {
	out := coerce(result)

	for _, alias := range sdk.AliasFields {
		if _, present := out[alias]; !present {
			out[alias] = out.Primary()
		}
	}

	if _, present := out["type"]; !present {
		out["type"] = nodeType
	}
	if _, present := out["node_name"]; !present {
		out["node_name"] = NodeName(nodeID, params)
	}

	if nodeType == "input" {
		ioType, _ := params["type"].(string)
		field, ok := typeField[strings.ToLower(ioType)]
		if !ok {
			field = "text"
		}
		if _, present := out[field]; !present {
			out[field] = out.Primary()
		}
	}

	return out
}

// coerce turns an arbitrary handler return value into a working
// sdk.NodeOutput with "output" set to the chosen primary value, per
// spec.md §4.2's three cases.
func coerce(result interface{}) sdk.NodeOutput {
	switch v := result.(type) {
	case sdk.NodeOutput:
		out := v.Clone()
		ensurePrimary(out)
		return out
	case map[string]interface{}:
		out := sdk.NodeOutput(make(map[string]interface{}, len(v)))
		for k, val := range v {
			out[k] = val
		}
		ensurePrimary(out)
		return out
	default:
		return sdk.NodeOutput{"output": v}
	}
}

// ensurePrimary fills in "output" from the first present field among
// (output, text, content, response, result, value) so that a map
// without an explicit "output" key still gets a primary.
func ensurePrimary(out sdk.NodeOutput) {
	if _, ok := out["output"]; ok {
		return
	}
	for _, alias := range []string{"text", "content", "response", "result", "value"} {
		if v, ok := out[alias]; ok {
			out["output"] = v
			return
		}
	}
	out["output"] = nil
}

// NodeName derives a human alias for a node: an explicit
// params["node_name"]/params["name"] wins, otherwise the node id is
// converted from whatever case convention it uses (snake_case,
// kebab-case, camelCase) into a readable, space-separated title.
func NodeName(nodeID string, params map[string]interface{}) string {
	if name, ok := params["node_name"].(string); ok && name != "" {
		return name
	}
	if name, ok := params["name"].(string); ok && name != "" {
		return name
	}
	snake := strcase.SnakeCase(nodeID)
	words := make([]rune, 0, len(snake))
	capitalizeNext := true
	for _, r := range snake {
		if r == '_' {
			words = append(words, ' ')
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			words = append(words, toUpperRune(r))
			capitalizeNext = false
			continue
		}
		words = append(words, r)
	}
	return string(words)
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
