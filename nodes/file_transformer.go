package nodes

import (
	"encoding/base64"
	"strings"

	"github.com/lyzr/flowengine/sdk"
)

// FileTransformer applies an encoding transform (params["operation"])
// to its "input" value: base64_encode, base64_decode, extract_extension.
func FileTransformer(_ *sdk.HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error) {
	raw := inputs["input"]
	op, _ := params["operation"].(string)

	switch op {
	case "", "passthrough":
		return raw, nil

	case "base64_encode":
		s, _ := raw.(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil

	case "base64_decode":
		s, _ := raw.(string)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, sdk.NewError(sdk.ErrHandlerError, "invalid base64 input", err).WithSub("parse")
		}
		return string(decoded), nil

	case "extract_extension":
		name, _ := raw.(string)
		idx := strings.LastIndex(name, ".")
		if idx < 0 {
			return "", nil
		}
		return name[idx+1:], nil

	default:
		return nil, sdk.NewError(sdk.ErrInvalidWorkflow, "unknown file_transformer operation: "+op, nil)
	}
}
