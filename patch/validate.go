package patch

import "fmt"

// maxAddedNodes bounds how many nodes a single patch may append,
// adapted from the teacher's per-patch agent-node cap.
const maxAddedNodes = 25

// Validate checks structural shape before Apply touches the workflow:
// every operation has a recognized op/path, add/replace carry a
// value, and added nodes look like nodes.
func Validate(ops []Operation) error {
	added := 0
	for i, op := range ops {
		if op.Op == "" {
			return fmt.Errorf("operation %d: missing op", i)
		}
		if op.Path == "" {
			return fmt.Errorf("operation %d: missing path", i)
		}
		switch op.Op {
		case "add", "replace", "test":
			if op.Value == nil {
				return fmt.Errorf("operation %d: %q requires a value", i, op.Op)
			}
		case "remove", "copy", "move":
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, op.Op)
		}

		if op.Op == "add" && op.Path == "/nodes/-" {
			if err := validateNodeValue(op.Value, i); err != nil {
				return err
			}
			added++
		}
	}
	if added > maxAddedNodes {
		return fmt.Errorf("patch adds %d nodes, exceeding the per-patch limit of %d", added, maxAddedNodes)
	}
	return nil
}

func validateNodeValue(value interface{}, opIndex int) error {
	node, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("operation %d: node value must be an object, got %T", opIndex, value)
	}
	if _, ok := node["id"].(string); !ok {
		return fmt.Errorf("operation %d: node must have an 'id' string field", opIndex)
	}
	if _, ok := node["type"].(string); !ok {
		return fmt.Errorf("operation %d: node must have a 'type' string field", opIndex)
	}
	if params, exists := node["params"]; exists {
		if _, ok := params.(map[string]interface{}); !ok {
			return fmt.Errorf("operation %d: node 'params' must be an object, got %T", opIndex, params)
		}
	}
	return nil
}
