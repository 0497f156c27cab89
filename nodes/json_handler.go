package nodes

import (
	"encoding/json"

	"github.com/lyzr/flowengine/resolver"
	"github.com/lyzr/flowengine/sdk"
)

// JSONHandler applies a JSON operation (params["operation"]) to its
// "input" value: parse (string->value), stringify (value->string),
// get_field (dotted params["path"] via gjson), set_field.
func JSONHandler(_ *sdk.HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error) {
	value := inputs["input"]
	op, _ := params["operation"].(string)

	switch op {
	case "", "passthrough":
		return value, nil

	case "parse":
		s, ok := value.(string)
		if !ok {
			return nil, sdk.NewError(sdk.ErrHandlerError, "json_handler parse requires a string input", nil).WithSub("parse")
		}
		var out interface{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, sdk.NewError(sdk.ErrHandlerError, "invalid JSON", err).WithSub("parse")
		}
		return out, nil

	case "stringify":
		b, err := json.Marshal(value)
		if err != nil {
			return nil, sdk.NewError(sdk.ErrHandlerError, "value is not JSON-serializable", err).WithSub("parse")
		}
		return string(b), nil

	case "get_field":
		path, _ := params["path"].(string)
		result, err := resolver.QueryJSON(value, path)
		if err != nil {
			return nil, sdk.NewError(sdk.ErrHandlerError, "failed to query JSON path", err).WithSub("parse")
		}
		if !result.Exists() {
			return nil, nil
		}
		return result.Value(), nil

	case "set_field":
		path, _ := params["path"].(string)
		fieldValue := params["value"]
		obj, _ := value.(map[string]interface{})
		if obj == nil {
			obj = map[string]interface{}{}
		}
		out := make(map[string]interface{}, len(obj)+1)
		for k, v := range obj {
			out[k] = v
		}
		out[path] = fieldValue
		return out, nil

	default:
		return nil, sdk.NewError(sdk.ErrInvalidWorkflow, "unknown json_handler operation: "+op, nil)
	}
}
