package nodes

import (
	"regexp"
	"strings"

	"github.com/lyzr/flowengine/sdk"
)

// TextProcessor applies a string operation (params["operation"]) to
// its "input" value: uppercase, lowercase, trim, replace, split,
// extract_regex, template_format. params["input"] overrides the
// assembled inputs["input"] when set directly.
func TextProcessor(_ *sdk.HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error) {
	text := textOf(params, inputs)
	op, _ := params["operation"].(string)

	switch op {
	case "", "passthrough":
		return text, nil
	case "uppercase":
		return strings.ToUpper(text), nil
	case "lowercase":
		return strings.ToLower(text), nil
	case "trim":
		return strings.TrimSpace(text), nil
	case "replace":
		from, _ := params["find"].(string)
		to, _ := params["replace"].(string)
		return strings.ReplaceAll(text, from, to), nil
	case "split":
		sep, _ := params["separator"].(string)
		if sep == "" {
			sep = ","
		}
		parts := strings.Split(text, sep)
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	case "extract_regex":
		pattern, _ := params["pattern"].(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, sdk.NewError(sdk.ErrHandlerError, "invalid regex pattern", err).WithSub("parse")
		}
		matches := re.FindAllString(text, -1)
		out := make([]interface{}, len(matches))
		for i, m := range matches {
			out[i] = m
		}
		return out, nil
	case "template_format":
		format, _ := params["format"].(string)
		return strings.ReplaceAll(format, "{{value}}", text), nil
	default:
		return nil, sdk.NewError(sdk.ErrInvalidWorkflow, "unknown text_processor operation: "+op, nil)
	}
}

func textOf(params, inputs map[string]interface{}) string {
	if v, ok := params["input"].(string); ok {
		return v
	}
	switch v := inputs["input"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return ""
	}
}
