package nodes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lyzr/flowengine/resolver"
	"github.com/lyzr/flowengine/sdk"
)

// Merge combines the values bound to this node's incoming handles
// (excluding the reserved "input" handle when unused) using
// params["function"] (default "pick_first"). params["delimiter"]
// controls join_all's string join (default " ").
func Merge(_ *sdk.HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error) {
	handles := sortedHandles(inputs)
	values := make([]interface{}, 0, len(handles))
	for _, h := range handles {
		values = append(values, inputs[h])
	}

	fn, _ := params["function"].(string)
	if fn == "" {
		fn = "pick_first"
	}

	switch fn {
	case "pick_first":
		for _, v := range values {
			if v != nil {
				return v, nil
			}
		}
		return nil, nil

	case "join_all":
		if allNumeric(values) {
			return sumNumeric(values), nil
		}
		delim, _ := params["delimiter"].(string)
		if delim == "" {
			delim = " "
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = resolver.Stringify(v)
		}
		return strings.Join(parts, delim), nil

	case "concat_arrays":
		var out []interface{}
		for _, v := range values {
			if list, ok := v.([]interface{}); ok {
				out = append(out, list...)
			} else if v != nil {
				out = append(out, v)
			}
		}
		return out, nil

	case "merge_objects":
		out := map[string]interface{}{}
		for _, v := range values {
			if obj, ok := v.(map[string]interface{}); ok {
				for k, val := range obj {
					out[k] = val
				}
			}
		}
		return out, nil

	case "avg":
		nums := toFloats(values)
		if len(nums) == 0 {
			return nil, nil
		}
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum / float64(len(nums)), nil

	case "min":
		nums := toFloats(values)
		if len(nums) == 0 {
			return nil, nil
		}
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min, nil

	case "max":
		nums := toFloats(values)
		if len(nums) == 0 {
			return nil, nil
		}
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max, nil

	case "create_object":
		out := map[string]interface{}{}
		for _, h := range handles {
			out[h] = inputs[h]
		}
		return out, nil

	default:
		return nil, sdk.NewError(sdk.ErrInvalidWorkflow, fmt.Sprintf("unknown merge function: %s", fn), nil)
	}
}

// sortedHandles returns inputs' keys in a stable order so merge
// results (join_all, create_object) are deterministic across runs.
func sortedHandles(inputs map[string]interface{}) []string {
	handles := make([]string, 0, len(inputs))
	for k := range inputs {
		handles = append(handles, k)
	}
	sort.Strings(handles)
	return handles
}

func allNumeric(values []interface{}) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, ok := toFloat(v); !ok {
			return false
		}
	}
	return true
}

func sumNumeric(values []interface{}) float64 {
	var sum float64
	for _, v := range values {
		f, _ := toFloat(v)
		sum += f
	}
	return sum
}

func toFloats(values []interface{}) []float64 {
	var out []float64
	for _, v := range values {
		if f, ok := toFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}
